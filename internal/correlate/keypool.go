package correlate

import (
	"fmt"
	"slices"
	"strings"

	"capflow/internal/documents"
)

// KeyPolicy decides what happens to key material once it has been handed to
// a session.
type KeyPolicy string

const (
	// KeyPolicyConsume drops early keys when claimed and does not keep
	// broadcast keys after delivery.
	KeyPolicyConsume KeyPolicy = "consume"
	// KeyPolicyRetain keeps every observed key so later sessions requiring
	// the same identifier are satisfied immediately.
	KeyPolicyRetain KeyPolicy = "retain"
)

// ParseKeyPolicy normalizes a configured policy name. Empty selects consume.
func ParseKeyPolicy(value string) (KeyPolicy, error) {
	switch KeyPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", KeyPolicyConsume:
		return KeyPolicyConsume, nil
	case KeyPolicyRetain:
		return KeyPolicyRetain, nil
	default:
		return "", fmt.Errorf("key policy: unsupported value %q", value)
	}
}

// KeyPool holds keys that arrived before any session needed them and the
// sessions waiting on keys that have not arrived yet. An identifier is never
// in both at once.
type KeyPool struct {
	policy  KeyPolicy
	early   map[string]documents.Key
	used    map[string]struct{}
	waiters map[string][]SessionID
}

// NewKeyPool returns an empty pool using policy.
func NewKeyPool(policy KeyPolicy) *KeyPool {
	if policy == "" {
		policy = KeyPolicyConsume
	}
	return &KeyPool{
		policy:  policy,
		early:   make(map[string]documents.Key),
		used:    make(map[string]struct{}),
		waiters: make(map[string][]SessionID),
	}
}

// Policy reports the pool's key policy.
func (p *KeyPool) Policy() KeyPolicy {
	return p.policy
}

// ObserveKey records a fetched key. With no waiters the key is kept as an
// early key. Otherwise deliver is called for every waiter in registration
// order and must report whether that session is now fully satisfied; the
// satisfied IDs are returned and the identifier leaves the waiter index.
func (p *KeyPool) ObserveKey(key documents.Key, deliver func(SessionID) bool) []SessionID {
	waiting, ok := p.waiters[key.URI]
	if !ok || len(waiting) == 0 {
		p.early[key.URI] = key
		return nil
	}

	delete(p.waiters, key.URI)
	p.used[key.URI] = struct{}{}

	var satisfied []SessionID
	for _, id := range waiting {
		if deliver(id) {
			satisfied = append(satisfied, id)
		}
	}
	if p.policy == KeyPolicyRetain {
		p.early[key.URI] = key
	}
	return satisfied
}

// ClaimIfEarly returns the early key for uri if one has arrived. Under the
// consume policy the key leaves the pool.
func (p *KeyPool) ClaimIfEarly(uri string) (documents.Key, bool) {
	key, ok := p.early[uri]
	if !ok {
		return documents.Key{}, false
	}
	p.used[uri] = struct{}{}
	if p.policy == KeyPolicyConsume {
		delete(p.early, uri)
	}
	return key, true
}

// RegisterWaiter records that session id needs uri. Callers must try
// ClaimIfEarly first.
func (p *KeyPool) RegisterWaiter(uri string, id SessionID) {
	if _, ok := p.early[uri]; ok {
		panic(fmt.Sprintf("correlate: session %d registered as waiter for early key %s", id, uri))
	}
	if slices.Contains(p.waiters[uri], id) {
		return
	}
	p.waiters[uri] = append(p.waiters[uri], id)
}

// Waiters returns the sessions waiting on uri in registration order.
func (p *KeyPool) Waiters(uri string) []SessionID {
	return slices.Clone(p.waiters[uri])
}

// Early reports whether uri is held as an early key.
func (p *KeyPool) Early(uri string) bool {
	_, ok := p.early[uri]
	return ok
}

// Unclaimed returns early keys no session ever used, ordered by URI.
func (p *KeyPool) Unclaimed() []documents.Key {
	keys := make([]documents.Key, 0, len(p.early))
	for uri, key := range p.early {
		if _, ok := p.used[uri]; ok {
			continue
		}
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b documents.Key) int {
		return strings.Compare(a.URI, b.URI)
	})
	return keys
}

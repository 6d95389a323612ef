package correlate

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"capflow/internal/documents"
)

// SessionID identifies a session. IDs are assigned in creation order and
// never reused within an engine.
type SessionID int64

// Session is the evolving state of one download.
type Session struct {
	ID      SessionID
	Stage   Stage
	History []Stage

	Dispatch    documents.Dispatch
	PlaylistURL string
	Playlist    *documents.Playlist

	VariantURL string
	Variant    *documents.Variant

	// RequiredKeys is fixed once the variant is selected.
	RequiredKeys []string
	Keys         map[string]documents.Key

	CreatedAt   time.Time
	CompletedAt time.Time
}

func newSession(id SessionID, createdAt time.Time) *Session {
	return &Session{
		ID:        id,
		Stage:     StageAwaitingDispatch,
		History:   []Stage{StageAwaitingDispatch},
		Keys:      make(map[string]documents.Key),
		CreatedAt: createdAt,
	}
}

// Title is the dispatch title or documents.UnknownTitle.
func (s *Session) Title() string {
	return s.Dispatch.DisplayTitle()
}

// MissingKeys returns the required key URIs not yet collected, in sorted order.
func (s *Session) MissingKeys() []string {
	missing := make([]string, 0, len(s.RequiredKeys))
	for _, uri := range s.RequiredKeys {
		if _, ok := s.Keys[uri]; !ok {
			missing = append(missing, uri)
		}
	}
	slices.Sort(missing)
	return missing
}

// CollectedKeys returns the collected key material ordered by URI.
func (s *Session) CollectedKeys() []documents.Key {
	keys := make([]documents.Key, 0, len(s.Keys))
	for _, key := range s.Keys {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b documents.Key) int {
		return strings.Compare(a.URI, b.URI)
	})
	return keys
}

// Satisfied reports whether a variant has been selected and every required
// key collected.
func (s *Session) Satisfied() bool {
	return s.Variant != nil && len(s.MissingKeys()) == 0
}

func (s *Session) requires(uri string) bool {
	return slices.Contains(s.RequiredKeys, uri)
}

// collect stores key if the session requires it and has not collected it yet.
// Collected keys are never replaced.
func (s *Session) collect(key documents.Key) bool {
	if !s.requires(key.URI) {
		return false
	}
	if _, ok := s.Keys[key.URI]; ok {
		return false
	}
	s.Keys[key.URI] = key
	return true
}

// advance moves the session forward. Moving backwards or sideways is an
// invariant violation.
func (s *Session) advance(next Stage) {
	if !s.Stage.Before(next) {
		panic(fmt.Sprintf("correlate: session %d cannot move from %s to %s", s.ID, s.Stage, next))
	}
	if next == StageComplete && !s.Satisfied() {
		panic(fmt.Sprintf("correlate: session %d marked complete with missing keys %v", s.ID, s.MissingKeys()))
	}
	s.Stage = next
	s.History = append(s.History, next)
}

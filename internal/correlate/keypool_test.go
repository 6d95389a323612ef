package correlate

import (
	"reflect"
	"testing"

	"capflow/internal/documents"
)

func TestKeyPoolStoresKeyWithoutWaiters(t *testing.T) {
	pool := NewKeyPool(KeyPolicyConsume)
	delivered := pool.ObserveKey(documents.Key{URI: "k1", CKC: "a"}, func(SessionID) bool {
		t.Fatal("deliver must not be called without waiters")
		return false
	})
	if delivered != nil {
		t.Fatalf("got %v want nil", delivered)
	}
	if !pool.Early("k1") {
		t.Fatal("expected k1 to be held as early key")
	}

	key, ok := pool.ClaimIfEarly("k1")
	if !ok || key.CKC != "a" {
		t.Fatalf("claim = %+v, %v", key, ok)
	}
	if pool.Early("k1") {
		t.Fatal("consume policy must drop claimed key")
	}
	if _, ok := pool.ClaimIfEarly("k1"); ok {
		t.Fatal("second claim should miss")
	}
}

func TestKeyPoolBroadcastsInRegistrationOrder(t *testing.T) {
	pool := NewKeyPool(KeyPolicyConsume)
	pool.RegisterWaiter("k1", 3)
	pool.RegisterWaiter("k1", 1)
	pool.RegisterWaiter("k1", 3)

	var order []SessionID
	satisfied := pool.ObserveKey(documents.Key{URI: "k1"}, func(id SessionID) bool {
		order = append(order, id)
		return id == 1
	})
	if want := []SessionID{3, 1}; !reflect.DeepEqual(order, want) {
		t.Fatalf("delivery order = %v, want %v", order, want)
	}
	if want := []SessionID{1}; !reflect.DeepEqual(satisfied, want) {
		t.Fatalf("satisfied = %v, want %v", satisfied, want)
	}
	if len(pool.Waiters("k1")) != 0 {
		t.Fatal("identifier must leave the waiter index after delivery")
	}
	if pool.Early("k1") {
		t.Fatal("consume policy must not keep a broadcast key")
	}
}

func TestKeyPoolRetainKeepsDeliveredKeys(t *testing.T) {
	pool := NewKeyPool(KeyPolicyRetain)
	pool.RegisterWaiter("k1", 1)
	pool.ObserveKey(documents.Key{URI: "k1", CKC: "x"}, func(SessionID) bool { return true })

	if len(pool.Waiters("k1")) != 0 {
		t.Fatal("waiters must be cleared even when retaining")
	}
	for range 2 {
		if key, ok := pool.ClaimIfEarly("k1"); !ok || key.CKC != "x" {
			t.Fatalf("retained claim = %+v, %v", key, ok)
		}
	}
	if unclaimed := pool.Unclaimed(); len(unclaimed) != 0 {
		t.Fatalf("delivered key reported unclaimed: %+v", unclaimed)
	}
}

func TestKeyPoolUnclaimedSortedByURI(t *testing.T) {
	pool := NewKeyPool(KeyPolicyConsume)
	for _, uri := range []string{"k3", "k1", "k2"} {
		pool.ObserveKey(documents.Key{URI: uri}, nil)
	}
	pool.ClaimIfEarly("k2")

	var got []string
	for _, key := range pool.Unclaimed() {
		got = append(got, key.URI)
	}
	if want := []string{"k1", "k3"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("unclaimed = %v, want %v", got, want)
	}
}

func TestKeyPoolRejectsWaiterForEarlyKey(t *testing.T) {
	pool := NewKeyPool(KeyPolicyConsume)
	pool.ObserveKey(documents.Key{URI: "k1"}, nil)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when an identifier would be both early and awaited")
		}
	}()
	pool.RegisterWaiter("k1", 1)
}

func TestParseKeyPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    KeyPolicy
		wantErr bool
	}{
		{"", KeyPolicyConsume, false},
		{"consume", KeyPolicyConsume, false},
		{" Retain ", KeyPolicyRetain, false},
		{"share", "", true},
	}
	for _, tt := range tests {
		got, err := ParseKeyPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKeyPolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKeyPolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

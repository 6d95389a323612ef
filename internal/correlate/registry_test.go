package correlate

import (
	"testing"
	"time"

	"capflow/internal/documents"
)

var testTime = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func TestRegistryIndexesFollowSessionLifecycle(t *testing.T) {
	r := NewRegistry()
	s := r.Create(documents.Dispatch{PlaylistURL: "p"}, testTime)
	if s.ID != 1 || s.Stage != StageAwaitingPlaylist {
		t.Fatalf("unexpected new session %+v", s)
	}
	if id, ok := r.PlaylistWaiter("p"); !ok || id != s.ID {
		t.Fatalf("playlist index = %d, %v", id, ok)
	}

	r.AttachPlaylist(s.ID, documents.Playlist{VariantURLs: []string{"v1", "v2", "v3"}})
	if len(r.playlistIndex) != 0 {
		t.Fatalf("playlist entry must be removed, index %v", r.playlistIndex)
	}
	if len(r.variantIndex) != 3 {
		t.Fatalf("expected one variant entry per alternative, index %v", r.variantIndex)
	}

	r.SelectVariant(s.ID, "v2", documents.Variant{KeyURIs: []string{"k"}})
	if len(r.variantIndex) != 0 {
		t.Fatalf("sibling entries must be discarded, index %v", r.variantIndex)
	}

	r.AwaitKeys(s.ID)
	s.collect(documents.Key{URI: "k"})
	done := r.Complete(s.ID, testTime.Add(time.Minute))
	if done.Stage != StageComplete || !done.CompletedAt.Equal(testTime.Add(time.Minute)) {
		t.Fatalf("unexpected completed session %+v", done)
	}
	if r.Len() != 0 {
		t.Fatalf("completed session must leave the registry")
	}
}

func TestRegistrySiblingDiscardKeepsOtherSessions(t *testing.T) {
	r := NewRegistry()
	a := r.Create(documents.Dispatch{PlaylistURL: "p"}, testTime)
	b := r.Create(documents.Dispatch{PlaylistURL: "p"}, testTime)
	r.AttachPlaylist(a.ID, documents.Playlist{VariantURLs: []string{"v1", "v2"}})
	r.AttachPlaylist(b.ID, documents.Playlist{VariantURLs: []string{"v1", "v2"}})

	if id, _ := r.VariantWaiter("v1"); id != a.ID {
		t.Fatalf("oldest waiter should be %d, got %d", a.ID, id)
	}
	r.SelectVariant(a.ID, "v1", documents.Variant{})

	for _, url := range []string{"v1", "v2"} {
		if id, ok := r.VariantWaiter(url); !ok || id != b.ID {
			t.Fatalf("%s should route to %d, got %d (%v)", url, b.ID, id, ok)
		}
	}
}

func TestRegistryRoutingMissPanics(t *testing.T) {
	r := NewRegistry()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unknown session")
		}
	}()
	r.AttachPlaylist(42, documents.Playlist{VariantURLs: []string{"v"}})
}

func TestRegistryStageMismatchPanics(t *testing.T) {
	r := NewRegistry()
	s := r.Create(documents.Dispatch{PlaylistURL: "p"}, testTime)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when routing a variant to a session awaiting its playlist")
		}
	}()
	r.SelectVariant(s.ID, "v", documents.Variant{})
}

func TestRegistryInProgressOrderedByID(t *testing.T) {
	r := NewRegistry()
	for range 5 {
		r.Create(documents.Dispatch{PlaylistURL: "p"}, testTime)
	}
	sessions := r.InProgress()
	for i, s := range sessions {
		if s.ID != SessionID(i+1) {
			t.Fatalf("position %d has id %d", i, s.ID)
		}
	}
}

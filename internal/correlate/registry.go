package correlate

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"capflow/internal/documents"
)

// Registry owns in-progress sessions and the URL indexes used to route
// playlist and variant transactions to them. Each index maps a URL to the
// sessions waiting on it, oldest first.
type Registry struct {
	nextID        SessionID
	sessions      map[SessionID]*Session
	playlistIndex map[string][]SessionID
	variantIndex  map[string][]SessionID
}

// NewRegistry returns an empty registry. The first session gets ID 1.
func NewRegistry() *Registry {
	return &Registry{
		sessions:      make(map[SessionID]*Session),
		playlistIndex: make(map[string][]SessionID),
		variantIndex:  make(map[string][]SessionID),
	}
}

// Create opens a session for a decoded dispatch document and starts waiting
// for its playlist.
func (r *Registry) Create(dispatch documents.Dispatch, at time.Time) *Session {
	r.nextID++
	session := newSession(r.nextID, at)
	session.Dispatch = dispatch
	session.PlaylistURL = dispatch.PlaylistURL
	session.advance(StageAwaitingPlaylist)

	r.sessions[session.ID] = session
	r.playlistIndex[session.PlaylistURL] = append(r.playlistIndex[session.PlaylistURL], session.ID)
	return session
}

// Get returns the in-progress session with id.
func (r *Registry) Get(id SessionID) (*Session, bool) {
	session, ok := r.sessions[id]
	return session, ok
}

// mustGet returns the session the indexes routed to. A miss means the indexes
// and the session table disagree.
func (r *Registry) mustGet(id SessionID, expected Stage) *Session {
	session, ok := r.sessions[id]
	if !ok {
		panic(fmt.Sprintf("correlate: routing miss: session %d is indexed but not registered", id))
	}
	if session.Stage != expected {
		panic(fmt.Sprintf("correlate: routing miss: session %d routed as %s but is %s", id, expected, session.Stage))
	}
	return session
}

// PlaylistWaiter returns the oldest session waiting for url as its playlist.
func (r *Registry) PlaylistWaiter(url string) (SessionID, bool) {
	return head(r.playlistIndex, url)
}

// VariantWaiter returns the oldest session offering url as an alternative.
func (r *Registry) VariantWaiter(url string) (SessionID, bool) {
	return head(r.variantIndex, url)
}

// AttachPlaylist stores the playlist, replaces the session's playlist index
// entry with one variant entry per alternative, and advances the session.
func (r *Registry) AttachPlaylist(id SessionID, playlist documents.Playlist) *Session {
	session := r.mustGet(id, StageAwaitingPlaylist)
	session.Playlist = &playlist

	unindex(r.playlistIndex, session.PlaylistURL, id)
	for _, variantURL := range playlist.VariantURLs {
		if slices.Contains(r.variantIndex[variantURL], id) {
			continue
		}
		r.variantIndex[variantURL] = append(r.variantIndex[variantURL], id)
	}
	session.advance(StageAwaitingVariant)
	return session
}

// SelectVariant records the chosen alternative and discards every other
// variant entry for the session. The stage is left for the caller to move
// once keys have been resolved.
func (r *Registry) SelectVariant(id SessionID, variantURL string, variant documents.Variant) *Session {
	session := r.mustGet(id, StageAwaitingVariant)
	session.VariantURL = variantURL
	session.Variant = &variant
	session.RequiredKeys = slices.Clone(variant.KeyURIs)

	if session.Playlist != nil {
		for _, alternative := range session.Playlist.VariantURLs {
			unindex(r.variantIndex, alternative, id)
		}
	}
	unindex(r.variantIndex, variantURL, id)
	return session
}

// AwaitKeys moves a session with a selected variant to the key stage.
func (r *Registry) AwaitKeys(id SessionID) *Session {
	session := r.mustGet(id, StageAwaitingVariant)
	session.advance(StageAwaitingKeys)
	return session
}

// Complete marks a satisfied session complete and releases it from the
// registry. It panics if keys are still missing.
func (r *Registry) Complete(id SessionID, at time.Time) *Session {
	session, ok := r.sessions[id]
	if !ok {
		panic(fmt.Sprintf("correlate: routing miss: completing unknown session %d", id))
	}
	session.advance(StageComplete)
	session.CompletedAt = at

	unindex(r.playlistIndex, session.PlaylistURL, id)
	if session.Playlist != nil {
		for _, alternative := range session.Playlist.VariantURLs {
			unindex(r.variantIndex, alternative, id)
		}
	}
	delete(r.sessions, id)
	return session
}

// InProgress returns the sessions still owned by the registry in ID order.
func (r *Registry) InProgress() []*Session {
	sessions := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	slices.SortFunc(sessions, func(a, b *Session) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return sessions
}

// Len reports the number of in-progress sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

func head(index map[string][]SessionID, url string) (SessionID, bool) {
	ids := index[url]
	if len(ids) == 0 {
		return 0, false
	}
	return ids[0], true
}

func unindex(index map[string][]SessionID, url string, id SessionID) {
	ids := index[url]
	pos := slices.Index(ids, id)
	if pos < 0 {
		return
	}
	ids = slices.Delete(ids, pos, pos+1)
	if len(ids) == 0 {
		delete(index, url)
		return
	}
	index[url] = ids
}

package correlate

import "time"

// SessionSummary is the JSON view of a session used by command output and
// the ingest API.
type SessionSummary struct {
	ID           int64        `json:"id"`
	Title        string       `json:"title"`
	Stage        Stage        `json:"stage"`
	PlaylistURL  string       `json:"playlist_url"`
	VariantURL   string       `json:"variant_url,omitempty"`
	Alternatives []string     `json:"alternatives,omitempty"`
	RequiredKeys []string     `json:"required_keys,omitempty"`
	MissingKeys  []string     `json:"missing_keys,omitempty"`
	Keys         []KeySummary `json:"keys,omitempty"`
	CreatedAt    *time.Time   `json:"created_at,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
}

// KeySummary is the JSON view of collected key material.
type KeySummary struct {
	URI       string     `json:"uri"`
	CKC       string     `json:"ckc"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Summary builds the JSON view of s.
func (s *Session) Summary() SessionSummary {
	summary := SessionSummary{
		ID:           int64(s.ID),
		Title:        s.Title(),
		Stage:        s.Stage,
		PlaylistURL:  s.PlaylistURL,
		VariantURL:   s.VariantURL,
		RequiredKeys: s.RequiredKeys,
		MissingKeys:  s.MissingKeys(),
		CreatedAt:    optionalTime(s.CreatedAt),
		CompletedAt:  optionalTime(s.CompletedAt),
	}
	if s.Playlist != nil && s.Variant == nil {
		summary.Alternatives = s.Playlist.VariantURLs
	}
	for _, key := range s.CollectedKeys() {
		summary.Keys = append(summary.Keys, KeySummary{
			URI:       key.URI,
			CKC:       key.CKC,
			IssuedAt:  optionalTime(key.Issued),
			ExpiresAt: optionalTime(key.Expiration),
		})
	}
	return summary
}

// Summaries maps Summary over sessions.
func Summaries(sessions []*Session) []SessionSummary {
	out := make([]SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, session.Summary())
	}
	return out
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

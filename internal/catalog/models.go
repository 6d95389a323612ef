package catalog

import (
	"time"

	"capflow/internal/correlate"
)

// Run is one archived replay or ingest run.
type Run struct {
	ID            string
	Source        string
	KeyPolicy     string
	StartedAt     time.Time
	FinishedAt    time.Time
	Transactions  int
	Completed     int
	Duplicates    int
	Stalled       int
	UnclaimedKeys int
}

// Download is one deduplicated completed session.
type Download struct {
	ID          int64
	RunID       string
	SessionID   int64
	Title       string
	PlaylistURL string
	VariantURL  string
	CreatedAt   time.Time
	CompletedAt time.Time
	Keys        []Key
}

// Key is decryption material collected by a download.
type Key struct {
	URI       string
	CKC       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewRun summarizes a finalization report for archiving.
func NewRun(report correlate.Report, source string, startedAt, finishedAt time.Time) Run {
	return Run{
		ID:            report.RunID,
		Source:        source,
		KeyPolicy:     string(report.KeyPolicy),
		StartedAt:     startedAt.UTC(),
		FinishedAt:    finishedAt.UTC(),
		Transactions:  report.Stats.Transactions,
		Completed:     len(report.Completed),
		Duplicates:    len(report.Duplicates),
		Stalled:       len(report.Stalled),
		UnclaimedKeys: len(report.UnclaimedKeys),
	}
}

// NewDownload converts a completed session into its archived form.
func NewDownload(session *correlate.Session) Download {
	collected := session.CollectedKeys()
	keys := make([]Key, 0, len(collected))
	for _, key := range collected {
		keys = append(keys, Key{
			URI:       key.URI,
			CKC:       key.CKC,
			IssuedAt:  key.Issued,
			ExpiresAt: key.Expiration,
		})
	}
	return Download{
		SessionID:   int64(session.ID),
		Title:       session.Title(),
		PlaylistURL: session.PlaylistURL,
		VariantURL:  session.VariantURL,
		CreatedAt:   session.CreatedAt,
		CompletedAt: session.CompletedAt,
		Keys:        keys,
	}
}

package correlate

import "capflow/internal/documents"

// Stats counts what the engine did with the transactions it was given.
type Stats struct {
	Transactions           int `json:"transactions"`
	SkippedStatus          int `json:"skipped_status"`
	Unrecognized           int `json:"unrecognized"`
	DispatchDecodeFailures int `json:"dispatch_decode_failures"`
	PlaylistDecodeFailures int `json:"playlist_decode_failures"`
	VariantDecodeFailures  int `json:"variant_decode_failures"`
	KeyDecodeFailures      int `json:"key_decode_failures"`
	SessionsCreated        int `json:"sessions_created"`
	SessionsCompleted      int `json:"sessions_completed"`
	KeysObserved           int `json:"keys_observed"`
	EarlyKeysClaimed       int `json:"early_keys_claimed"`
}

// DecodeFailures sums decode failures across all document kinds.
func (s Stats) DecodeFailures() int {
	return s.DispatchDecodeFailures + s.PlaylistDecodeFailures + s.VariantDecodeFailures + s.KeyDecodeFailures
}

// Report is produced once when the transaction stream is exhausted.
type Report struct {
	RunID     string
	KeyPolicy KeyPolicy
	// Completed holds one session per distinct selected variant, in
	// completion order.
	Completed []*Session
	// Duplicates are completed sessions dropped because an earlier session
	// selected the same variant.
	Duplicates    []*Session
	Stalled       []*Session
	UnclaimedKeys []documents.Key
	Stats         Stats
}

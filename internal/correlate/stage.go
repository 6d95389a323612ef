package correlate

import "slices"

// Stage represents the lifecycle of a download session.
type Stage string

const (
	StageAwaitingDispatch Stage = "awaiting_dispatch"
	StageAwaitingPlaylist Stage = "awaiting_playlist"
	StageAwaitingVariant  Stage = "awaiting_variant"
	StageAwaitingKeys     Stage = "awaiting_keys"
	StageComplete         Stage = "complete"
)

var stageOrder = []Stage{
	StageAwaitingDispatch,
	StageAwaitingPlaylist,
	StageAwaitingVariant,
	StageAwaitingKeys,
	StageComplete,
}

// rank returns the position of s in the lifecycle, or -1 for unknown stages.
func (s Stage) rank() int {
	return slices.Index(stageOrder, s)
}

// Before reports whether s comes strictly earlier in the lifecycle than other.
func (s Stage) Before(other Stage) bool {
	return s.rank() >= 0 && s.rank() < other.rank()
}

// Label returns a short human-readable form used in tables.
func (s Stage) Label() string {
	switch s {
	case StageAwaitingDispatch:
		return "Awaiting dispatch"
	case StageAwaitingPlaylist:
		return "Awaiting playlist"
	case StageAwaitingVariant:
		return "Awaiting variant"
	case StageAwaitingKeys:
		return "Awaiting keys"
	case StageComplete:
		return "Complete"
	default:
		return string(s)
	}
}

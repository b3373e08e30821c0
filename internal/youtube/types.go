package youtube

import (
	"errors"
	"time"
)

var (
	// ErrMissingField marks a feed item without an id or publish timestamp.
	ErrMissingField = errors.New("youtube: item missing required field")
	// ErrEmptyBatch marks an empty enrichment response for a non-empty request.
	ErrEmptyBatch = errors.New("youtube: empty batch response")
	// ErrBatchMismatch marks an enrichment response that does not cover the request.
	ErrBatchMismatch = errors.New("youtube: batch length mismatch")
	// ErrShortProbe marks an unexpected response from the shorts redirect probe.
	ErrShortProbe = errors.New("youtube: unexpected shorts probe status")
)

// Video is one playlist item. Immutable once observed; fetched fresh on
// every poll cycle.
type Video struct {
	ID          string
	PublishedAt time.Time
}

// LiveState classifies a video's broadcast lifecycle.
type LiveState int

const (
	// StateUploaded is a plain upload with no live-streaming details.
	StateUploaded LiveState = iota
	// StateUpcoming has a scheduled start but no actual start yet.
	StateUpcoming
	// StateLive has started and not ended.
	StateLive
	// StateVOD is an archived stream (started and ended).
	StateVOD
	// StateIndeterminate is a provider data anomaly: streaming details are
	// present but neither a scheduled nor an actual start explains them.
	StateIndeterminate
)

func (s LiveState) String() string {
	switch s {
	case StateUploaded:
		return "uploaded"
	case StateUpcoming:
		return "upcoming"
	case StateLive:
		return "live"
	case StateVOD:
		return "vod"
	case StateIndeterminate:
		return "indeterminate"
	default:
		return "unknown"
	}
}

// Extras carries the auxiliary attributes fetched for videos that have at
// least one subscriber behind them. Scoped to one dispatch cycle.
type Extras struct {
	VideoID      string
	CategoryID   string
	Title        string
	ChannelTitle string
	State        LiveState
	IsScheduled  bool
	ScheduledAt  time.Time // zero unless IsScheduled
	IsShort      bool

	// ProbeErr records a per-item shorts-probe failure. Workunits carrying it
	// are skipped for the cycle without touching the cursor.
	ProbeErr error
}

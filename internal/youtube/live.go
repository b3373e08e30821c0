package youtube

import "time"

// Classify maps the liveStreamingDetails timestamp triple onto a LiveState.
//
//	(scheduled, -, -)      -> Upcoming
//	(*, start, -)          -> Live
//	(*, start, end)        -> VOD
//	(-, -, -) or (-, -, end) -> Indeterminate
//
// Callers must only invoke this when the video carries a liveStreamingDetails
// block at all; plain uploads are StateUploaded without consulting the triple.
func Classify(scheduledStart, actualStart, actualEnd time.Time) LiveState {
	switch {
	case !actualStart.IsZero() && !actualEnd.IsZero():
		return StateVOD
	case !actualStart.IsZero():
		return StateLive
	case !actualEnd.IsZero():
		// An end without a start is provider nonsense.
		return StateIndeterminate
	case !scheduledStart.IsZero():
		return StateUpcoming
	default:
		return StateIndeterminate
	}
}

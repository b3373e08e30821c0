package watch

import (
	"tubewatch/internal/storage"
	"tubewatch/internal/youtube"
)

// Eligible decides whether a workunit should actually be delivered, from the
// subscription's content-type filters and the item's attributes. Suppressed
// workunits still advance the cursor: the subscriber chose not to see them,
// they are not pending.
//
// A Live or VOD item that carries a schedule escapes the live/vod filters:
// once something was surfaced as upcoming, re-suppressing its later states
// would make the earlier notice a dead end. Visibility wins over strict
// filter purity here.
func Eligible(ex youtube.Extras, f storage.Filters) bool {
	if ex.State == youtube.StateIndeterminate {
		return false
	}
	if ex.IsShort && !f.ShortsAllowed {
		return false
	}
	if ex.State == youtube.StateLive && !f.LiveAllowed && !ex.IsScheduled {
		return false
	}
	if ex.State == youtube.StateVOD && !f.VODAllowed && !ex.IsScheduled {
		return false
	}
	return true
}

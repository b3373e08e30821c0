package watch

import (
	"context"

	"tubewatch/internal/youtube"
	"tubewatch/pkg/logx"
)

// collectCandidates walks the ordered video batch and joins each video with
// the subscriptions whose cursor is behind it. It returns the candidate
// workunits (by batch index) and the first relevant index: the position of
// the oldest video that still matters to anyone.
//
// The skip-forward only advances while videos are encountered in strict
// oldest-first order without gaps (firstRelevant == i). If the backend ever
// returned items out of order, a video past a wrongly-advanced index would
// never be delivered, so the guard keeps later zero-subscriber videos
// retained instead. A store error for one video likewise leaves the index
// alone and moves on.
func (e *Engine) collectCandidates(ctx context.Context, playlistID string, videos []youtube.Video) ([]indexWorkunit, int) {
	firstRelevant := 0
	var candidates []indexWorkunit

	for i, v := range videos {
		subs, err := e.store.SubscribersBehind(ctx, playlistID, v.PublishedAt)
		if err != nil {
			e.log.Warn("subscriber lookup failed",
				logx.String("playlist", playlistID), logx.String("video", v.ID), logx.Err(err))
			continue
		}

		if len(subs) == 0 {
			if firstRelevant == i {
				firstRelevant = i + 1
			}
			continue
		}
		for _, sub := range subs {
			candidates = append(candidates, indexWorkunit{index: i, sub: sub})
		}
	}
	return candidates, firstRelevant
}

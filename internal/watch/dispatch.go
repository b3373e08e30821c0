package watch

import (
	"context"
	"time"

	kit "tubewatch/internal/transport"
	"tubewatch/pkg/logx"
)

// outcome is the terminal state a workunit reached within one dispatch pass.
// Every workunit reaches exactly one of these within the cycle.
type outcome int

const (
	// outcomeFiltered: suppressed by filters, cursor advanced, nothing sent.
	outcomeFiltered outcome = iota
	// outcomeDelivered: message sent and cursor advanced.
	outcomeDelivered
	// outcomeSendFailed: send failed; cursor untouched, so the item is
	// naturally retried next cycle.
	outcomeSendFailed
	// outcomeCompensated: sent, cursor write failed, compensating delete
	// succeeded. Net external state matches a send failure.
	outcomeCompensated
	// outcomeResyncQueued: sent, cursor write failed, delete also failed. The
	// message stands; the workunit is queued until its cursor write succeeds.
	outcomeResyncQueued
	// outcomeProbeSkipped: enrichment probe failed for this item; skipped for
	// the cycle, cursor untouched.
	outcomeProbeSkipped
	// outcomeCursorWriteFailed: nothing was sent and the cursor write failed.
	// No external side effect exists that could be mistakenly repeated, so
	// the unit is simply retried next cycle.
	outcomeCursorWriteFailed
)

// dispatchOne drives one workunit to a terminal state.
func (e *Engine) dispatchOne(ctx context.Context, wu Workunit) outcome {
	if wu.Extras.ProbeErr != nil {
		e.log.Warn("shorts probe failed; skipping item for this cycle",
			logx.String("video", wu.Video.ID), logx.Err(wu.Extras.ProbeErr))
		return outcomeProbeSkipped
	}

	sent := false
	var ref kit.MessageRef
	if Eligible(wu.Extras, wu.Sub.Filters) {
		text := e.formatMessage(ctx, wu)
		r, err := e.notif.SendText(ctx, wu.Sub.ChatID, text, htmlSendOptions())
		if err != nil {
			e.log.Warn("send failed",
				logx.String("video", wu.Video.ID), logx.Int64("chat", wu.Sub.ChatID), logx.Err(err))
			return outcomeSendFailed
		}
		sent = true
		ref = r
	}

	advErr := e.store.AdvanceCursor(ctx, wu.PlaylistID, wu.Sub.ChatID, wu.Video.PublishedAt)
	if advErr == nil {
		if sent {
			return outcomeDelivered
		}
		return outcomeFiltered
	}

	e.log.Error("cursor update failed",
		logx.String("video", wu.Video.ID), logx.Int64("chat", wu.Sub.ChatID), logx.Err(advErr))

	if !sent {
		// No message that could be mistakenly sent twice.
		return outcomeCursorWriteFailed
	}

	delErr := e.notif.DeleteMessage(ctx, ref)
	if delErr == nil {
		e.log.Warn("compensating delete succeeded; delivery will be retried next cycle",
			logx.String("video", wu.Video.ID), logx.Int64("chat", wu.Sub.ChatID))
		return outcomeCompensated
	}

	e.log.Error("compensating delete failed; queueing for cursor resync",
		logx.String("video", wu.Video.ID), logx.Int64("chat", wu.Sub.ChatID), logx.Err(delErr))
	e.resync = append(e.resync, wu)
	return outcomeResyncQueued
}

// dispatch runs a batch of workunits, then drains the resync queue before
// returning control to the poll loop.
func (e *Engine) dispatch(ctx context.Context, wus []Workunit) {
	for _, wu := range wus {
		e.dispatchOne(ctx, wu)
	}
	e.drainResync(ctx)
}

// drainResync retries the cursor writes of sent-but-unrecorded workunits
// until none remain. It deliberately blocks the whole loop: the queue is only
// ever non-empty when a persistence failure and a delivery-channel failure hit
// the same workunit, and continuing to poll before the store is back in sync
// would duplicate messages.
//
// The writes run on a context detached from shutdown cancellation; aborting
// mid-drain would leave an undeleted message with no recorded cursor.
func (e *Engine) drainResync(ctx context.Context) {
	if len(e.resync) == 0 {
		return
	}

	e.log.Warn("cursor resync started", logx.Int("pending", len(e.resync)))
	dctx := context.WithoutCancel(ctx)

	failures := 0
	for len(e.resync) > 0 {
		wu := e.resync[0]
		e.resync = e.resync[1:]

		if err := e.store.AdvanceCursor(dctx, wu.PlaylistID, wu.Sub.ChatID, wu.Video.PublishedAt); err != nil {
			failures++
			e.resync = append(e.resync, wu)
		}

		// Pace retries so a wedged store isn't hammered.
		time.Sleep(e.resyncPause)
	}
	e.log.Warn("cursor resync finished", logx.Int("extra_failures", failures))
}

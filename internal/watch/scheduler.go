package watch

import (
	"context"
	"time"

	"tubewatch/pkg/logx"
)

const (
	defaultIdleInterval = 30 * time.Second
	defaultResyncPause  = 5 * time.Millisecond
)

type Config struct {
	// IdleInterval is slept when no playlist is subscribed (or the playlist
	// list cannot be fetched). Everything else is paced by the rate gate.
	IdleInterval time.Duration
}

// Engine owns the poll loop and the resync queue. It is not safe for
// concurrent use: Run is the single worker and nothing else may touch it.
type Engine struct {
	store Store
	src   Source
	notif Notifier
	log   logx.Logger

	idle        time.Duration
	resyncPause time.Duration

	// resync holds workunits whose message stands but whose cursor write
	// failed. FIFO; only ever touched from Run's goroutine.
	resync []Workunit
}

func New(cfg Config, store Store, src Source, notif Notifier, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	idle := cfg.IdleInterval
	if idle <= 0 {
		idle = defaultIdleInterval
	}
	return &Engine{
		store:       store,
		src:         src,
		notif:       notif,
		log:         log,
		idle:        idle,
		resyncPause: defaultResyncPause,
	}
}

// Run is the outer poll loop. It returns only when ctx is cancelled, and only
// at a checkpoint between playlists: interrupting mid-workunit could leave a
// resync entry undrained.
func (e *Engine) Run(ctx context.Context) {
	e.log.Info("watch loop started", logx.Duration("idle_interval", e.idle))

	for {
		if ctx.Err() != nil {
			e.log.Info("watch loop stopped")
			return
		}

		playlists, err := e.store.Playlists(ctx)
		if err != nil {
			e.log.Warn("playlist listing failed", logx.Err(err))
			e.sleep(ctx, e.idle)
			continue
		}
		if len(playlists) == 0 {
			e.sleep(ctx, e.idle)
			continue
		}

		for _, pl := range playlists {
			// Shutdown checkpoint: only between playlists.
			if ctx.Err() != nil {
				e.log.Info("watch loop stopped")
				return
			}
			e.processPlaylist(ctx, pl)
		}
	}
}

// processPlaylist runs one playlist through the full pipeline:
// read -> join subscribers -> enrich survivors -> dispatch -> resync drain.
// All errors are terminal for this playlist's cycle only.
func (e *Engine) processPlaylist(ctx context.Context, playlistID string) {
	videos, err := e.src.ListNewItems(ctx, playlistID)
	if err != nil {
		e.log.Warn("feed read failed; skipping playlist this cycle",
			logx.String("playlist", playlistID), logx.Err(err))
		return
	}
	if len(videos) == 0 {
		return
	}

	candidates, firstRelevant := e.collectCandidates(ctx, playlistID, videos)

	// Everything before firstRelevant is behind every cursor. Videos after it
	// with zero subscribers of their own stay in the batch: their extras ride
	// along on the shared enrichment call.
	batch := videos[firstRelevant:]
	if len(batch) == 0 {
		return
	}

	extras, err := e.src.FetchExtras(ctx, batch)
	if err != nil {
		e.log.Warn("enrichment failed; discarding batch this cycle",
			logx.String("playlist", playlistID), logx.Int("batch", len(batch)), logx.Err(err))
		return
	}

	wus := make([]Workunit, 0, len(candidates))
	for _, c := range candidates {
		i := c.index - firstRelevant
		wus = append(wus, Workunit{
			PlaylistID: playlistID,
			Video:      batch[i],
			Extras:     extras[i],
			Sub:        c.sub,
		})
	}

	e.dispatch(ctx, wus)
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

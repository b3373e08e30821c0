package watch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tubewatch/internal/storage"
	kit "tubewatch/internal/transport"
	"tubewatch/internal/youtube"
	"tubewatch/pkg/logx"
)

type fakeStore struct {
	playlists     func(ctx context.Context) ([]string, error)
	behind        func(ctx context.Context, playlistID string, publishedAt time.Time) ([]storage.Subscription, error)
	advanceCursor func(ctx context.Context, playlistID string, chatID int64, ts time.Time) error
}

func (f *fakeStore) Playlists(ctx context.Context) ([]string, error) {
	return f.playlists(ctx)
}

func (f *fakeStore) SubscribersBehind(ctx context.Context, playlistID string, publishedAt time.Time) ([]storage.Subscription, error) {
	return f.behind(ctx, playlistID, publishedAt)
}

func (f *fakeStore) AdvanceCursor(ctx context.Context, playlistID string, chatID int64, ts time.Time) error {
	return f.advanceCursor(ctx, playlistID, chatID, ts)
}

type fakeSource struct {
	list  func(ctx context.Context, playlistID string) ([]youtube.Video, error)
	fetch func(ctx context.Context, videos []youtube.Video) ([]youtube.Extras, error)
	title func(ctx context.Context, categoryID string) string
}

func (f *fakeSource) ListNewItems(ctx context.Context, playlistID string) ([]youtube.Video, error) {
	return f.list(ctx, playlistID)
}

func (f *fakeSource) FetchExtras(ctx context.Context, videos []youtube.Video) ([]youtube.Extras, error) {
	return f.fetch(ctx, videos)
}

func (f *fakeSource) Title(ctx context.Context, categoryID string) string {
	if f.title == nil {
		return ""
	}
	return f.title(ctx, categoryID)
}

type sentMsg struct {
	chatID int64
	text   string
}

type fakeNotifier struct {
	sendErr error
	delErr  error

	sent    []sentMsg
	deleted []kit.MessageRef
}

func (f *fakeNotifier) SendText(ctx context.Context, chatID int64, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if f.sendErr != nil {
		return kit.MessageRef{}, f.sendErr
	}
	f.sent = append(f.sent, sentMsg{chatID: chatID, text: text})
	return kit.MessageRef{ChatID: chatID, MessageID: len(f.sent)}, nil
}

func (f *fakeNotifier) DeleteMessage(ctx context.Context, ref kit.MessageRef) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.deleted = append(f.deleted, ref)
	return nil
}

func allowAll() storage.Filters { return storage.DefaultFilters() }

func sub(chatID int64, cursor time.Time, f storage.Filters) storage.Subscription {
	return storage.Subscription{PlaylistID: "UUpl", ChatID: chatID, Cursor: cursor, Filters: f}
}

func TestEligible(t *testing.T) {
	t.Parallel()
	noShorts := storage.Filters{LiveAllowed: true, VODAllowed: true, ShortsAllowed: false}
	noLive := storage.Filters{LiveAllowed: false, VODAllowed: true, ShortsAllowed: true}
	noVOD := storage.Filters{LiveAllowed: true, VODAllowed: false, ShortsAllowed: true}

	tests := []struct {
		name string
		ex   youtube.Extras
		f    storage.Filters
		want bool
	}{
		{name: "plain upload", ex: youtube.Extras{State: youtube.StateUploaded}, f: allowAll(), want: true},
		{name: "short disallowed", ex: youtube.Extras{State: youtube.StateUploaded, IsShort: true}, f: noShorts, want: false},
		{name: "short allowed", ex: youtube.Extras{State: youtube.StateUploaded, IsShort: true}, f: allowAll(), want: true},
		{name: "live disallowed", ex: youtube.Extras{State: youtube.StateLive}, f: noLive, want: false},
		{name: "scheduled live escapes live filter", ex: youtube.Extras{State: youtube.StateLive, IsScheduled: true}, f: noLive, want: true},
		{name: "vod disallowed", ex: youtube.Extras{State: youtube.StateVOD}, f: noVOD, want: false},
		{name: "scheduled vod escapes vod filter", ex: youtube.Extras{State: youtube.StateVOD, IsScheduled: true}, f: noVOD, want: true},
		{name: "indeterminate never delivered", ex: youtube.Extras{State: youtube.StateIndeterminate}, f: allowAll(), want: false},
		{name: "upcoming", ex: youtube.Extras{State: youtube.StateUpcoming, IsScheduled: true}, f: allowAll(), want: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := Eligible(tt.ex, tt.f); got != tt.want {
				t.Fatalf("Eligible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func videoBatch(ts time.Time, ids ...string) []youtube.Video {
	out := make([]youtube.Video, len(ids))
	for i, id := range ids {
		out[i] = youtube.Video{ID: id, PublishedAt: ts.Add(time.Duration(i) * time.Minute)}
	}
	return out
}

func TestCollectCandidatesSkipForward(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	videos := videoBatch(base, "v0", "v1", "v2", "v3")

	// v0 and v1 are behind nobody, v2 has a subscriber, v3 again has none.
	st := &fakeStore{
		behind: func(_ context.Context, _ string, publishedAt time.Time) ([]storage.Subscription, error) {
			if publishedAt.Equal(videos[2].PublishedAt) {
				return []storage.Subscription{sub(1, time.Time{}, allowAll())}, nil
			}
			return nil, nil
		},
	}
	e := New(Config{}, st, nil, nil, logx.Nop())

	candidates, firstRelevant := e.collectCandidates(context.Background(), "UUpl", videos)
	if firstRelevant != 2 {
		t.Fatalf("firstRelevant = %d, want 2", firstRelevant)
	}
	if len(candidates) != 1 || candidates[0].index != 2 {
		t.Fatalf("unexpected candidates: %+v", candidates)
	}
}

func TestCollectCandidatesGapGuard(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	videos := videoBatch(base, "v0", "v1", "v2")

	// A subscriber behind v0 stops the skip; the zero-subscriber v1 after it
	// must not advance the index past the gap.
	st := &fakeStore{
		behind: func(_ context.Context, _ string, publishedAt time.Time) ([]storage.Subscription, error) {
			if publishedAt.Equal(videos[1].PublishedAt) {
				return nil, nil
			}
			return []storage.Subscription{sub(1, time.Time{}, allowAll())}, nil
		},
	}
	e := New(Config{}, st, nil, nil, logx.Nop())

	candidates, firstRelevant := e.collectCandidates(context.Background(), "UUpl", videos)
	if firstRelevant != 0 {
		t.Fatalf("firstRelevant = %d, want 0", firstRelevant)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %+v", candidates)
	}
}

func TestCollectCandidatesStoreError(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	videos := videoBatch(base, "v0", "v1")

	st := &fakeStore{
		behind: func(_ context.Context, _ string, publishedAt time.Time) ([]storage.Subscription, error) {
			if publishedAt.Equal(videos[0].PublishedAt) {
				return nil, errors.New("db locked")
			}
			return []storage.Subscription{sub(1, time.Time{}, allowAll())}, nil
		},
	}
	e := New(Config{}, st, nil, nil, logx.Nop())

	candidates, firstRelevant := e.collectCandidates(context.Background(), "UUpl", videos)
	if firstRelevant != 0 {
		t.Fatalf("firstRelevant = %d, want 0 after a lookup error", firstRelevant)
	}
	if len(candidates) != 1 || candidates[0].index != 1 {
		t.Fatalf("unexpected candidates: %+v", candidates)
	}
}

func newTestEngine(st *fakeStore, src *fakeSource, n *fakeNotifier) *Engine {
	var s Source
	if src != nil {
		s = src
	} else {
		s = &fakeSource{}
	}
	return New(Config{}, st, s, n, logx.Nop())
}

func TestDispatchOneOutcomes(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	wuFor := func(ex youtube.Extras, f storage.Filters) Workunit {
		return Workunit{
			PlaylistID: "UUpl",
			Video:      youtube.Video{ID: "vid", PublishedAt: ts},
			Extras:     ex,
			Sub:        sub(7, time.Time{}, f),
		}
	}
	plain := youtube.Extras{VideoID: "vid", Title: "t", ChannelTitle: "c", State: youtube.StateUploaded}

	t.Run("probe skip leaves cursor alone", func(t *testing.T) {
		advanced := false
		st := &fakeStore{advanceCursor: func(context.Context, string, int64, time.Time) error {
			advanced = true
			return nil
		}}
		n := &fakeNotifier{}
		e := newTestEngine(st, nil, n)

		ex := plain
		ex.ProbeErr = errors.New("probe 429")
		if got := e.dispatchOne(context.Background(), wuFor(ex, allowAll())); got != outcomeProbeSkipped {
			t.Fatalf("outcome = %v, want probe skip", got)
		}
		if advanced || len(n.sent) != 0 {
			t.Fatalf("probe skip must not send or advance (sent=%d advanced=%v)", len(n.sent), advanced)
		}
	})

	t.Run("filtered advances cursor without sending", func(t *testing.T) {
		var gotTS time.Time
		st := &fakeStore{advanceCursor: func(_ context.Context, _ string, _ int64, ts time.Time) error {
			gotTS = ts
			return nil
		}}
		n := &fakeNotifier{}
		e := newTestEngine(st, nil, n)

		ex := plain
		ex.IsShort = true
		f := allowAll()
		f.ShortsAllowed = false
		if got := e.dispatchOne(context.Background(), wuFor(ex, f)); got != outcomeFiltered {
			t.Fatalf("outcome = %v, want filtered", got)
		}
		if len(n.sent) != 0 {
			t.Fatalf("filtered workunit was sent")
		}
		if !gotTS.Equal(ts) {
			t.Fatalf("cursor advanced to %v, want %v", gotTS, ts)
		}
	})

	t.Run("delivered", func(t *testing.T) {
		st := &fakeStore{advanceCursor: func(context.Context, string, int64, time.Time) error { return nil }}
		n := &fakeNotifier{}
		e := newTestEngine(st, nil, n)

		if got := e.dispatchOne(context.Background(), wuFor(plain, allowAll())); got != outcomeDelivered {
			t.Fatalf("outcome = %v, want delivered", got)
		}
		if len(n.sent) != 1 || n.sent[0].chatID != 7 {
			t.Fatalf("unexpected sends: %+v", n.sent)
		}
	})

	t.Run("send failure leaves cursor alone", func(t *testing.T) {
		advanced := false
		st := &fakeStore{advanceCursor: func(context.Context, string, int64, time.Time) error {
			advanced = true
			return nil
		}}
		n := &fakeNotifier{sendErr: errors.New("telegram 502")}
		e := newTestEngine(st, nil, n)

		if got := e.dispatchOne(context.Background(), wuFor(plain, allowAll())); got != outcomeSendFailed {
			t.Fatalf("outcome = %v, want send failed", got)
		}
		if advanced {
			t.Fatal("cursor advanced after a failed send")
		}
	})

	t.Run("cursor failure without send just retries", func(t *testing.T) {
		st := &fakeStore{advanceCursor: func(context.Context, string, int64, time.Time) error {
			return errors.New("db locked")
		}}
		n := &fakeNotifier{}
		e := newTestEngine(st, nil, n)

		ex := plain
		ex.IsShort = true
		f := allowAll()
		f.ShortsAllowed = false
		if got := e.dispatchOne(context.Background(), wuFor(ex, f)); got != outcomeCursorWriteFailed {
			t.Fatalf("outcome = %v, want cursor write failed", got)
		}
		if len(e.resync) != 0 {
			t.Fatalf("nothing was sent, resync queue should stay empty: %d", len(e.resync))
		}
	})

	t.Run("compensating delete", func(t *testing.T) {
		st := &fakeStore{advanceCursor: func(context.Context, string, int64, time.Time) error {
			return errors.New("db locked")
		}}
		n := &fakeNotifier{}
		e := newTestEngine(st, nil, n)

		if got := e.dispatchOne(context.Background(), wuFor(plain, allowAll())); got != outcomeCompensated {
			t.Fatalf("outcome = %v, want compensated", got)
		}
		if len(n.deleted) != 1 {
			t.Fatalf("expected 1 compensating delete, got %d", len(n.deleted))
		}
		if len(e.resync) != 0 {
			t.Fatalf("compensated workunit must not be queued")
		}
	})

	t.Run("delete failure queues resync", func(t *testing.T) {
		st := &fakeStore{advanceCursor: func(context.Context, string, int64, time.Time) error {
			return errors.New("db locked")
		}}
		n := &fakeNotifier{delErr: errors.New("message too old")}
		e := newTestEngine(st, nil, n)

		if got := e.dispatchOne(context.Background(), wuFor(plain, allowAll())); got != outcomeResyncQueued {
			t.Fatalf("outcome = %v, want resync queued", got)
		}
		if len(e.resync) != 1 {
			t.Fatalf("resync queue length = %d, want 1", len(e.resync))
		}
	})
}

func TestDrainResyncRetriesUntilWritten(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	failures := 2
	writes := 0
	st := &fakeStore{advanceCursor: func(context.Context, string, int64, time.Time) error {
		if failures > 0 {
			failures--
			return errors.New("db locked")
		}
		writes++
		return nil
	}}
	e := newTestEngine(st, nil, &fakeNotifier{})
	e.resyncPause = time.Millisecond

	e.resync = append(e.resync, Workunit{
		PlaylistID: "UUpl",
		Video:      youtube.Video{ID: "vid", PublishedAt: ts},
		Sub:        sub(7, time.Time{}, allowAll()),
	})
	e.drainResync(context.Background())

	if len(e.resync) != 0 {
		t.Fatalf("resync queue not drained: %d left", len(e.resync))
	}
	if writes != 1 {
		t.Fatalf("cursor written %d times, want 1", writes)
	}
}

func TestDrainResyncSurvivesCancelledContext(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	writes := 0
	st := &fakeStore{advanceCursor: func(ctx context.Context, _ string, _ int64, _ time.Time) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		writes++
		return nil
	}}
	e := newTestEngine(st, nil, &fakeNotifier{})
	e.resyncPause = time.Millisecond
	e.resync = append(e.resync, Workunit{
		PlaylistID: "UUpl",
		Video:      youtube.Video{ID: "vid", PublishedAt: ts},
		Sub:        sub(7, time.Time{}, allowAll()),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.drainResync(ctx)

	if len(e.resync) != 0 {
		t.Fatalf("resync queue not drained under cancelled context: %d left", len(e.resync))
	}
	if writes != 1 {
		t.Fatalf("cursor written %d times, want 1", writes)
	}
}

func TestProcessPlaylistDeliversOldestFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// Oldest-first batch, the order ListNewItems guarantees.
	videos := []youtube.Video{
		{ID: "older", PublishedAt: base},
		{ID: "newer", PublishedAt: base.Add(time.Hour)},
	}

	cursor := time.Time{}
	st := &fakeStore{
		behind: func(_ context.Context, _ string, publishedAt time.Time) ([]storage.Subscription, error) {
			if cursor.Before(publishedAt) {
				return []storage.Subscription{sub(7, cursor, allowAll())}, nil
			}
			return nil, nil
		},
		advanceCursor: func(_ context.Context, _ string, _ int64, ts time.Time) error {
			if ts.After(cursor) {
				cursor = ts
			}
			return nil
		},
	}
	src := &fakeSource{
		list: func(context.Context, string) ([]youtube.Video, error) { return videos, nil },
		fetch: func(_ context.Context, vs []youtube.Video) ([]youtube.Extras, error) {
			out := make([]youtube.Extras, len(vs))
			for i, v := range vs {
				out[i] = youtube.Extras{VideoID: v.ID, Title: v.ID, ChannelTitle: "ch", State: youtube.StateUploaded}
			}
			return out, nil
		},
	}
	n := &fakeNotifier{}
	e := New(Config{}, st, src, n, logx.Nop())

	e.processPlaylist(context.Background(), "UUpl")

	if len(n.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(n.sent))
	}
	if !strings.Contains(n.sent[0].text, "older") || !strings.Contains(n.sent[1].text, "newer") {
		t.Fatalf("messages out of order: %q then %q", n.sent[0].text, n.sent[1].text)
	}
	if !cursor.Equal(videos[1].PublishedAt) {
		t.Fatalf("cursor = %v, want %v", cursor, videos[1].PublishedAt)
	}

	// A second pass over the same batch must be a no-op.
	e.processPlaylist(context.Background(), "UUpl")
	if len(n.sent) != 2 {
		t.Fatalf("second pass re-sent messages: %d total", len(n.sent))
	}
}

func TestRunStopsAtPlaylistBoundary(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var listed []string
	st := &fakeStore{
		playlists: func(context.Context) ([]string, error) { return []string{"UUa", "UUb"}, nil },
		behind: func(context.Context, string, time.Time) ([]storage.Subscription, error) {
			return []storage.Subscription{sub(7, time.Time{}, allowAll())}, nil
		},
		advanceCursor: func(context.Context, string, int64, time.Time) error { return nil },
	}
	src := &fakeSource{
		list: func(_ context.Context, playlistID string) ([]youtube.Video, error) {
			listed = append(listed, playlistID)
			// Shutdown arrives while this playlist is in flight.
			cancel()
			return []youtube.Video{{ID: "vid", PublishedAt: base}}, nil
		},
		fetch: func(_ context.Context, vs []youtube.Video) ([]youtube.Extras, error) {
			out := make([]youtube.Extras, len(vs))
			for i, v := range vs {
				out[i] = youtube.Extras{VideoID: v.ID, Title: v.ID, ChannelTitle: "ch", State: youtube.StateUploaded}
			}
			return out, nil
		},
	}
	n := &fakeNotifier{}
	e := New(Config{}, st, src, n, logx.Nop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run(ctx)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if len(listed) != 1 || listed[0] != "UUa" {
		t.Fatalf("playlists read after cancel: %v", listed)
	}
	if len(n.sent) != 1 {
		t.Fatalf("in-flight playlist was not finished: %d messages sent", len(n.sent))
	}
}

func TestFormatMessage(t *testing.T) {
	t.Parallel()
	e := New(Config{}, &fakeStore{}, &fakeSource{
		title: func(_ context.Context, id string) string {
			if id == "20" {
				return "Gaming"
			}
			return ""
		},
	}, &fakeNotifier{}, logx.Nop())

	wu := Workunit{
		Video: youtube.Video{ID: "abc123"},
		Extras: youtube.Extras{
			CategoryID:   "20",
			Title:        "Big <Launch>",
			ChannelTitle: "Rockets & Co",
			State:        youtube.StateUploaded,
		},
	}
	got := e.formatMessage(context.Background(), wu)
	want := "<b>Rockets &amp; Co</b> · Gaming\n<a href=\"https://youtu.be/abc123\">Big &lt;Launch&gt;</a>"
	if got != want {
		t.Fatalf("formatMessage:\n got %q\nwant %q", got, want)
	}
}

func TestFormatMessageUpcoming(t *testing.T) {
	t.Parallel()
	e := New(Config{}, &fakeStore{}, &fakeSource{}, &fakeNotifier{}, logx.Nop())

	sched := time.Date(2026, 3, 2, 18, 30, 0, 0, time.UTC)
	wu := Workunit{
		Video: youtube.Video{ID: "abc123"},
		Extras: youtube.Extras{
			Title:        "Premiere",
			ChannelTitle: "ch",
			State:        youtube.StateUpcoming,
			IsScheduled:  true,
			ScheduledAt:  sched,
		},
	}
	got := e.formatMessage(context.Background(), wu)
	if !strings.Contains(got, "⏱ ") {
		t.Fatalf("missing upcoming marker: %q", got)
	}
	if !strings.Contains(got, sched.Format(scheduledTimeFormat)) {
		t.Fatalf("missing scheduled time: %q", got)
	}
}

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tubewatch/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "bot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestAddAndDuplicate(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.Add(ctx, "UUpl", 7); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := st.Add(ctx, "UUpl", 7); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second Add error = %v, want ErrDuplicate", err)
	}
	// Same playlist, different chat is a distinct subscription.
	if err := st.Add(ctx, "UUpl", 8); err != nil {
		t.Fatalf("Add other chat: %v", err)
	}

	subs, err := st.Subscriptions(ctx, "UUpl")
	if err != nil {
		t.Fatalf("Subscriptions: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("got %d subscriptions, want 2", len(subs))
	}
	if !subs[0].Cursor.Equal(time.UnixMilli(0).UTC()) {
		t.Fatalf("fresh cursor = %v, want epoch zero", subs[0].Cursor)
	}
	if subs[0].Filters != DefaultFilters() {
		t.Fatalf("fresh filters = %+v, want all allowed", subs[0].Filters)
	}
}

func TestDeleteAndNotFound(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.Delete(ctx, "UUpl", 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete missing error = %v, want ErrNotFound", err)
	}
	if err := st.Add(ctx, "UUpl", 7); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := st.Delete(ctx, "UUpl", 7); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	n, err := st.CountPlaylists(ctx)
	if err != nil || n != 0 {
		t.Fatalf("CountPlaylists after delete = %d, %v", n, err)
	}
}

func TestPlaylistsAndCount(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for _, pair := range []struct {
		pl   string
		chat int64
	}{
		{"UUb", 1}, {"UUa", 1}, {"UUa", 2},
	} {
		if err := st.Add(ctx, pair.pl, pair.chat); err != nil {
			t.Fatalf("Add(%s,%d): %v", pair.pl, pair.chat, err)
		}
	}

	pls, err := st.Playlists(ctx)
	if err != nil {
		t.Fatalf("Playlists: %v", err)
	}
	if len(pls) != 2 || pls[0] != "UUa" || pls[1] != "UUb" {
		t.Fatalf("Playlists = %v", pls)
	}
	n, err := st.CountPlaylists(ctx)
	if err != nil || n != 2 {
		t.Fatalf("CountPlaylists = %d, %v", n, err)
	}
}

func TestSetFilters(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.SetFilters(ctx, "UUpl", 7, DefaultFilters()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SetFilters missing error = %v, want ErrNotFound", err)
	}

	if err := st.Add(ctx, "UUpl", 7); err != nil {
		t.Fatalf("Add: %v", err)
	}
	want := Filters{LiveAllowed: true, VODAllowed: false, ShortsAllowed: false}
	if err := st.SetFilters(ctx, "UUpl", 7, want); err != nil {
		t.Fatalf("SetFilters: %v", err)
	}

	subs, err := st.Subscriptions(ctx, "UUpl")
	if err != nil || len(subs) != 1 {
		t.Fatalf("Subscriptions = %v, %v", subs, err)
	}
	if subs[0].Filters != want {
		t.Fatalf("Filters = %+v, want %+v", subs[0].Filters, want)
	}
}

func TestAdvanceCursorMonotone(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.Add(ctx, "UUpl", 7); err != nil {
		t.Fatalf("Add: %v", err)
	}

	t1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	if err := st.AdvanceCursor(ctx, "UUpl", 7, t2); err != nil {
		t.Fatalf("AdvanceCursor: %v", err)
	}
	// Stale and equal timestamps are silent no-ops.
	if err := st.AdvanceCursor(ctx, "UUpl", 7, t1); err != nil {
		t.Fatalf("stale AdvanceCursor: %v", err)
	}
	if err := st.AdvanceCursor(ctx, "UUpl", 7, t2); err != nil {
		t.Fatalf("equal AdvanceCursor: %v", err)
	}

	subs, err := st.Subscriptions(ctx, "UUpl")
	if err != nil || len(subs) != 1 {
		t.Fatalf("Subscriptions = %v, %v", subs, err)
	}
	if !subs[0].Cursor.Equal(t2) {
		t.Fatalf("Cursor = %v, want %v", subs[0].Cursor, t2)
	}
}

func TestSubscribersBehind(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.Add(ctx, "UUpl", 7); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := st.Add(ctx, "UUpl", 8); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := st.AdvanceCursor(ctx, "UUpl", 7, ts); err != nil {
		t.Fatalf("AdvanceCursor: %v", err)
	}

	// Chat 7's cursor sits exactly at ts: strictly-before excludes it.
	behind, err := st.SubscribersBehind(ctx, "UUpl", ts)
	if err != nil {
		t.Fatalf("SubscribersBehind: %v", err)
	}
	if len(behind) != 1 || behind[0].ChatID != 8 {
		t.Fatalf("behind(ts) = %+v, want chat 8 only", behind)
	}

	behind, err = st.SubscribersBehind(ctx, "UUpl", ts.Add(time.Second))
	if err != nil {
		t.Fatalf("SubscribersBehind: %v", err)
	}
	if len(behind) != 2 {
		t.Fatalf("behind(ts+1s) = %+v, want both chats", behind)
	}

	behind, err = st.SubscribersBehind(ctx, "UUother", ts)
	if err != nil {
		t.Fatalf("SubscribersBehind: %v", err)
	}
	if len(behind) != 0 {
		t.Fatalf("behind(other playlist) = %+v, want none", behind)
	}
}

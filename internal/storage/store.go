// Package storage persists playlist subscriptions and their delivery cursors.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("storage: not found")
	ErrDuplicate = errors.New("storage: subscription already exists")
)

// Filters are the per-subscription content-type switches. A freshly created
// subscription allows everything.
type Filters struct {
	LiveAllowed   bool
	VODAllowed    bool
	ShortsAllowed bool
}

func DefaultFilters() Filters {
	return Filters{LiveAllowed: true, VODAllowed: true, ShortsAllowed: true}
}

// Subscription is one (playlist, chat) pair. Cursor is the publish time of the
// most recently delivered item; it only ever moves forward.
type Subscription struct {
	PlaylistID string
	ChatID     int64
	Cursor     time.Time
	Filters    Filters
}

// Store is the subscription store consumed by the watch engine and the
// command front end.
//
// AdvanceCursor must be monotone: a call with a timestamp at or before the
// stored cursor is a no-op, not an error.
type Store interface {
	Playlists(ctx context.Context) ([]string, error)
	CountPlaylists(ctx context.Context) (int, error)

	Subscriptions(ctx context.Context, playlistID string) ([]Subscription, error)
	// SubscribersBehind returns the subscriptions for playlistID whose cursor is
	// strictly before publishedAt.
	SubscribersBehind(ctx context.Context, playlistID string, publishedAt time.Time) ([]Subscription, error)

	Add(ctx context.Context, playlistID string, chatID int64) error
	Delete(ctx context.Context, playlistID string, chatID int64) error
	SetFilters(ctx context.Context, playlistID string, chatID int64, f Filters) error

	AdvanceCursor(ctx context.Context, playlistID string, chatID int64, ts time.Time) error

	Close() error
}

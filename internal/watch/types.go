package watch

import (
	"context"
	"time"

	"tubewatch/internal/storage"
	kit "tubewatch/internal/transport"
	"tubewatch/internal/youtube"
)

// Store is the slice of the subscription store the engine needs.
type Store interface {
	Playlists(ctx context.Context) ([]string, error)
	SubscribersBehind(ctx context.Context, playlistID string, publishedAt time.Time) ([]storage.Subscription, error)
	AdvanceCursor(ctx context.Context, playlistID string, chatID int64, ts time.Time) error
}

// Source reads and enriches playlist items. Implemented by youtube.Service.
type Source interface {
	ListNewItems(ctx context.Context, playlistID string) ([]youtube.Video, error)
	FetchExtras(ctx context.Context, videos []youtube.Video) ([]youtube.Extras, error)
	Title(ctx context.Context, categoryID string) string
}

// Notifier is the outbound half of the messaging adapter.
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string, opt *kit.SendOptions) (kit.MessageRef, error)
	DeleteMessage(ctx context.Context, ref kit.MessageRef) error
}

// Workunit is one candidate delivery of one item to one chat. It exists only
// in memory for the duration of one dispatch pass and is owned exclusively by
// the engine.
type Workunit struct {
	PlaylistID string
	Video      youtube.Video
	Extras     youtube.Extras
	Sub        storage.Subscription
}

// indexWorkunit defers the extras join: it points at a video by batch index
// so one videos.list call can serve every workunit of the batch.
type indexWorkunit struct {
	index int
	sub   storage.Subscription
}

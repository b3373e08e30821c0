package youtube

import (
	"context"
	"time"

	"tubewatch/internal/rategate"
	"tubewatch/pkg/logx"
)

// Service is the rate-gated face of the YouTube client. Every quota-bearing
// call (playlistItems, videos, categories) and the shorts probe funnel through
// one shared gate, so the process as a whole never exceeds the derived
// request interval.
type Service struct {
	gate *rategate.Gate[*Client]
	// cli is the same client the gate wraps; used directly only for calls that
	// spend no API quota (channel page scraping).
	cli  *Client
	cats *CategoryCache

	regionCode string
	language   string

	log logx.Logger
}

type ServiceConfig struct {
	RequestInterval time.Duration
	RegionCode      string
	Language        string
}

func NewService(cli *Client, cfg ServiceConfig, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		gate:       rategate.New(cfg.RequestInterval, cli),
		cli:        cli,
		cats:       NewCategoryCache(),
		regionCode: cfg.RegionCode,
		language:   cfg.Language,
		log:        log,
	}
}

// RequestInterval returns the gate's minimum spacing (for /howmany).
func (s *Service) RequestInterval() time.Duration { return s.gate.Interval() }

// ListNewItems returns the newest page of the playlist in oldest-first order.
// Downstream cursor logic requires oldest-first processing: advancing the
// cursor past item N must imply every item before N was already attempted.
func (s *Service) ListNewItems(ctx context.Context, playlistID string) ([]Video, error) {
	var videos []Video
	err := s.gate.Use(ctx, func(cli *Client) error {
		var err error
		videos, err = cli.PlaylistItems(ctx, playlistID)
		return err
	})
	if err != nil {
		return nil, err
	}

	// The API returns newest first.
	for i, j := 0, len(videos)-1; i < j; i, j = i+1, j-1 {
		videos[i], videos[j] = videos[j], videos[i]
	}
	return videos, nil
}

// FetchExtras enriches a non-empty batch of videos: one gated videos.list call
// for the whole batch, then one gated shorts probe per video. A batch-level
// failure (fetch error, empty or mismatched response) fails the call; a probe
// failure is recorded on that item's Extras.ProbeErr and does not disturb its
// siblings.
func (s *Service) FetchExtras(ctx context.Context, videos []Video) ([]Extras, error) {
	var extras []Extras
	err := s.gate.Use(ctx, func(cli *Client) error {
		var err error
		extras, err = cli.VideosExtras(ctx, videos)
		return err
	})
	if err != nil {
		return nil, err
	}

	for i := range extras {
		id := extras[i].VideoID
		perr := s.gate.Use(ctx, func(cli *Client) error {
			short, err := cli.ProbeShort(ctx, id)
			if err != nil {
				return err
			}
			extras[i].IsShort = short
			return nil
		})
		if perr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			extras[i].ProbeErr = perr
		}
	}
	return extras, nil
}

// ResolveUploadsPlaylist resolves a channel URL without touching the gate:
// scraping the public page spends no API quota.
func (s *Service) ResolveUploadsPlaylist(ctx context.Context, channelURL string) (string, error) {
	return s.cli.ResolveUploadsPlaylist(ctx, channelURL)
}

// RefreshCategories re-fetches the category table through the gate.
func (s *Service) RefreshCategories(ctx context.Context) error {
	var titles map[string]string
	err := s.gate.Use(ctx, func(cli *Client) error {
		var err error
		titles, err = cli.Categories(ctx, s.regionCode, s.language)
		return err
	})
	if err != nil {
		return err
	}
	s.cats.Replace(titles)
	s.log.Debug("category table refreshed", logx.Int("categories", len(titles)))
	return nil
}

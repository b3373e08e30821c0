package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultAPIBase   = "https://www.googleapis.com/youtube/v3"
	defaultWebBase   = "https://www.youtube.com"
	playlistPageSize = 50
)

// StatusError is a non-2xx API response. Transient from the engine's point of
// view: the unit of work is skipped for the cycle and retried next time.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("youtube: %s returned HTTP %d", e.Op, e.Code)
}

// Client is a thin JSON client for the YouTube Data API plus the youtube.com
// endpoints used for channel resolution and the shorts probe.
//
// It does no pacing of its own; all quota-bearing calls are expected to go
// through the process-wide rate gate.
type Client struct {
	http    *http.Client
	noredir *http.Client

	key     string
	apiBase string
	webBase string
}

func NewClient(key string) *Client {
	h := &http.Client{Timeout: 30 * time.Second}
	return &Client{
		http: h,
		noredir: &http.Client{
			Timeout: 15 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		key:     key,
		apiBase: defaultAPIBase,
		webBase: defaultWebBase,
	}
}

func (c *Client) getJSON(ctx context.Context, op, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("youtube: %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("youtube: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Op: op, Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("youtube: %s decode: %w", op, err)
	}
	return nil
}

// ---- playlistItems.list ----

type playlistItemsResponse struct {
	Items []struct {
		ContentDetails struct {
			VideoID          string `json:"videoId"`
			VideoPublishedAt string `json:"videoPublishedAt"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// PlaylistItems returns the newest page of a playlist in the API's native
// order (newest first). Items missing an id or publish timestamp fail the
// whole call: downstream cursor logic depends on a gapless ordered batch.
func (c *Client) PlaylistItems(ctx context.Context, playlistID string) ([]Video, error) {
	q := url.Values{}
	q.Set("part", "contentDetails")
	q.Set("playlistId", playlistID)
	q.Set("maxResults", fmt.Sprint(playlistPageSize))
	q.Set("key", c.key)

	var resp playlistItemsResponse
	if err := c.getJSON(ctx, "playlistItems.list", c.apiBase+"/playlistItems?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	out := make([]Video, 0, len(resp.Items))
	for _, it := range resp.Items {
		cd := it.ContentDetails
		if cd.VideoID == "" || cd.VideoPublishedAt == "" {
			return nil, fmt.Errorf("%w: video %q published %q", ErrMissingField, cd.VideoID, cd.VideoPublishedAt)
		}
		ts, err := time.Parse(time.RFC3339, cd.VideoPublishedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: video %s: %v", ErrMissingField, cd.VideoID, err)
		}
		out = append(out, Video{ID: cd.VideoID, PublishedAt: ts.UTC()})
	}
	return out, nil
}

// ---- videos.list ----

type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			CategoryID   string `json:"categoryId"`
		} `json:"snippet"`
		LiveStreamingDetails *struct {
			ScheduledStartTime string `json:"scheduledStartTime"`
			ActualStartTime    string `json:"actualStartTime"`
			ActualEndTime      string `json:"actualEndTime"`
		} `json:"liveStreamingDetails"`
	} `json:"items"`
}

// VideosExtras fetches snippet + liveStreamingDetails for the given videos and
// returns one Extras per input video, same order, same length. An empty or
// incomplete response fails the whole batch. The per-item shorts probe result
// is NOT populated here; see ProbeShort.
func (c *Client) VideosExtras(ctx context.Context, videos []Video) ([]Extras, error) {
	ids := make([]string, len(videos))
	for i, v := range videos {
		ids[i] = v.ID
	}

	q := url.Values{}
	q.Set("part", "snippet,liveStreamingDetails")
	q.Set("id", strings.Join(ids, ","))
	q.Set("key", c.key)

	var resp videosResponse
	if err := c.getJSON(ctx, "videos.list", c.apiBase+"/videos?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, ErrEmptyBatch
	}

	byID := make(map[string]Extras, len(resp.Items))
	for _, it := range resp.Items {
		ex := Extras{
			VideoID:      it.ID,
			CategoryID:   it.Snippet.CategoryID,
			Title:        it.Snippet.Title,
			ChannelTitle: it.Snippet.ChannelTitle,
			State:        StateUploaded,
		}
		if lsd := it.LiveStreamingDetails; lsd != nil {
			sched := parseTimeOrZero(lsd.ScheduledStartTime)
			start := parseTimeOrZero(lsd.ActualStartTime)
			end := parseTimeOrZero(lsd.ActualEndTime)
			ex.State = Classify(sched, start, end)
			ex.IsScheduled = !sched.IsZero()
			ex.ScheduledAt = sched
		}
		byID[it.ID] = ex
	}

	out := make([]Extras, len(videos))
	for i, v := range videos {
		ex, ok := byID[v.ID]
		if !ok {
			return nil, fmt.Errorf("%w: %d requested, %d returned (missing %s)",
				ErrBatchMismatch, len(videos), len(resp.Items), v.ID)
		}
		out[i] = ex
	}
	return out, nil
}

func parseTimeOrZero(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// ---- videoCategories.list ----

type categoriesResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
}

// Categories returns the id -> title table for the given region/language.
func (c *Client) Categories(ctx context.Context, regionCode, language string) (map[string]string, error) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("regionCode", regionCode)
	q.Set("hl", language)
	q.Set("key", c.key)

	var resp categoriesResponse
	if err := c.getJSON(ctx, "videoCategories.list", c.apiBase+"/videoCategories?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(resp.Items))
	for _, it := range resp.Items {
		out[it.ID] = it.Snippet.Title
	}
	return out, nil
}

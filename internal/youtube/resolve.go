package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrBadChannelURL means the input could not be parsed as a channel URL.
	ErrBadChannelURL = errors.New("youtube: invalid channel url")
	// ErrChannelIDNotFound means the channel page had no recognizable id.
	ErrChannelIDNotFound = errors.New("youtube: channel id not found on page")
)

// ResolveUploadsPlaylist turns a public channel URL (/@handle, /channel/UC...,
// /c/name, /user/name) into the channel's uploads playlist id.
//
// The uploads playlist shares the channel id's tail: UCxxxx -> UUxxxx, so once
// the channel id is known no API quota is spent. Channel ids embedded in
// /channel/ URLs are used directly; everything else is scraped from the
// page's metadata.
func (c *Client) ResolveUploadsPlaylist(ctx context.Context, channelURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(channelURL))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrBadChannelURL, channelURL)
	}
	if !strings.HasSuffix(u.Hostname(), "youtube.com") && u.Hostname() != "youtu.be" {
		return "", fmt.Errorf("%w: host %q", ErrBadChannelURL, u.Hostname())
	}

	if id, ok := channelIDFromPath(u.Path); ok {
		return uploadsFromChannelID(id)
	}

	id, err := c.scrapeChannelID(ctx, u.String())
	if err != nil {
		return "", err
	}
	return uploadsFromChannelID(id)
}

func channelIDFromPath(path string) (string, bool) {
	const prefix = "/channel/"
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	id := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if i := strings.IndexByte(id, '/'); i >= 0 {
		id = id[:i]
	}
	if strings.HasPrefix(id, "UC") && len(id) > 2 {
		return id, true
	}
	return "", false
}

func uploadsFromChannelID(id string) (string, error) {
	if !strings.HasPrefix(id, "UC") || len(id) <= 2 {
		return "", fmt.Errorf("%w: unexpected channel id %q", ErrChannelIDNotFound, id)
	}
	return "UU" + id[2:], nil
}

// scrapeChannelID fetches the channel page and pulls the canonical channel id
// out of its head metadata.
func (c *Client) scrapeChannelID(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("youtube: resolve: %w", err)
	}
	req.Header.Set("Accept-Language", "en")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("youtube: resolve: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Op: "resolve", Code: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("youtube: resolve parse: %w", err)
	}

	// Channel pages expose the id twice; take whichever is present.
	if v, ok := doc.Find(`meta[itemprop="identifier"]`).Attr("content"); ok && strings.HasPrefix(v, "UC") {
		return v, nil
	}
	if href, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
		if cu, err := url.Parse(href); err == nil {
			if id, found := channelIDFromPath(cu.Path); found {
				return id, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrChannelIDNotFound, pageURL)
}

package youtube

import (
	"context"
	"fmt"
	"net/http"
)

// ProbeShort reports whether the video is a Short.
//
// youtube.com answers a /shorts/<id> request with 200 for an actual Short and
// a 303 redirect to /watch for long-form video. Those are the only two
// outcomes we trust; anything else (including network failure) is an error
// for that item alone.
func (c *Client) ProbeShort(ctx context.Context, videoID string) (bool, error) {
	u := c.webBase + "/shorts/" + videoID
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return false, fmt.Errorf("youtube: shorts probe: %w", err)
	}

	resp, err := c.noredir.Do(req)
	if err != nil {
		return false, fmt.Errorf("youtube: shorts probe: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusSeeOther:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %d for %s", ErrShortProbe, resp.StatusCode, videoID)
	}
}

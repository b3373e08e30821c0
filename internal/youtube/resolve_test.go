package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolveUploadsPlaylistFromChannelURL(t *testing.T) {
	t.Parallel()
	c := NewClient("")

	tests := []struct {
		url  string
		want string
	}{
		{url: "https://www.youtube.com/channel/UCabc123", want: "UUabc123"},
		{url: "https://youtube.com/channel/UCabc123/", want: "UUabc123"},
		{url: "https://www.youtube.com/channel/UCabc123/videos", want: "UUabc123"},
		{url: " https://www.youtube.com/channel/UCabc123 ", want: "UUabc123"},
	}
	for _, tt := range tests {
		got, err := c.ResolveUploadsPlaylist(context.Background(), tt.url)
		if err != nil {
			t.Fatalf("ResolveUploadsPlaylist(%q): %v", tt.url, err)
		}
		if got != tt.want {
			t.Fatalf("ResolveUploadsPlaylist(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestResolveUploadsPlaylistRejectsBadInput(t *testing.T) {
	t.Parallel()
	c := NewClient("")

	for _, url := range []string{
		"",
		"not a url",
		"https://example.com/channel/UCabc123",
		"https://vimeo.com/somebody",
	} {
		if _, err := c.ResolveUploadsPlaylist(context.Background(), url); !errors.Is(err, ErrBadChannelURL) {
			t.Fatalf("ResolveUploadsPlaylist(%q) error = %v, want ErrBadChannelURL", url, err)
		}
	}
}

func TestScrapeChannelID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/@withmeta":
			fmt.Fprint(w, `<html><head><meta itemprop="identifier" content="UCmeta111"></head></html>`)
		case "/@withcanonical":
			fmt.Fprint(w, `<html><head><link rel="canonical" href="https://www.youtube.com/channel/UCcanon22"></head></html>`)
		case "/@naked":
			fmt.Fprint(w, `<html><head></head><body>nothing useful</body></html>`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient("")

	id, err := c.scrapeChannelID(context.Background(), srv.URL+"/@withmeta")
	if err != nil || id != "UCmeta111" {
		t.Fatalf("meta scrape = %q, %v", id, err)
	}

	id, err = c.scrapeChannelID(context.Background(), srv.URL+"/@withcanonical")
	if err != nil || id != "UCcanon22" {
		t.Fatalf("canonical scrape = %q, %v", id, err)
	}

	if _, err = c.scrapeChannelID(context.Background(), srv.URL+"/@naked"); !errors.Is(err, ErrChannelIDNotFound) {
		t.Fatalf("bare page error = %v, want ErrChannelIDNotFound", err)
	}

	var se *StatusError
	if _, err = c.scrapeChannelID(context.Background(), srv.URL+"/@missing"); !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("missing page error = %v, want StatusError 404", err)
	}
}

func TestUploadsFromChannelID(t *testing.T) {
	t.Parallel()
	if got, err := uploadsFromChannelID("UCxyz"); err != nil || got != "UUxyz" {
		t.Fatalf("uploadsFromChannelID(UCxyz) = %q, %v", got, err)
	}
	if _, err := uploadsFromChannelID("xyz"); !errors.Is(err, ErrChannelIDNotFound) {
		t.Fatalf("error = %v, want ErrChannelIDNotFound", err)
	}
	if _, err := uploadsFromChannelID("UC"); err == nil {
		t.Fatal("bare prefix accepted")
	}
}

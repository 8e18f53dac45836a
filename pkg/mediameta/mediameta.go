// Package mediameta resolves display metadata (title, author, thumbnail)
// for media URLs added to a playlist. YouTube links go through the oEmbed
// endpoint with a page-scrape fallback for videos whose owner disabled
// embedding.
package mediameta

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrMediaNotFound      = errors.New("media not found")
	ErrMediaNotEmbeddable = errors.New("media is not embeddable")
)

type Metadata struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

type Resolver struct {
	httpClient *http.Client
}

func NewResolver(timeout time.Duration) *Resolver {
	return &Resolver{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Lookup resolves metadata for a media URL. Non-YouTube URLs are not an
// error: they come back with the URL itself as the title so the playlist
// entry is still presentable.
func (r *Resolver) Lookup(ctx context.Context, mediaURL string) (Metadata, error) {
	videoID, ok := youtubeVideoID(mediaURL)
	if !ok {
		return Metadata{Title: mediaURL}, nil
	}

	meta, err := r.lookupOEmbed(ctx, videoID)
	if err != nil {
		if !errors.Is(err, ErrMediaNotEmbeddable) {
			return Metadata{}, fmt.Errorf("failed to look up oembed metadata: %w", err)
		}

		meta, err = r.lookupPage(ctx, videoID)
		if err != nil {
			return Metadata{}, fmt.Errorf("failed to scrape metadata from page: %w", err)
		}
	}

	return meta, nil
}

// youtubeVideoID extracts the video id from the URL shapes YouTube hands
// out: watch?v=, youtu.be/ short links and /embed/ paths.
func youtubeVideoID(mediaURL string) (string, bool) {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return "", false
	}

	host := strings.TrimPrefix(u.Hostname(), "www.")
	switch host {
	case "youtube.com", "m.youtube.com":
		if id := u.Query().Get("v"); id != "" {
			return id, true
		}
		if rest, ok := strings.CutPrefix(u.Path, "/embed/"); ok && rest != "" {
			return rest, true
		}
	case "youtu.be":
		if id := strings.TrimPrefix(u.Path, "/"); id != "" {
			return id, true
		}
	}

	return "", false
}

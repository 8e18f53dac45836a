package mediameta

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const oembedEndpoint = "https://www.youtube.com/oembed"

func (r *Resolver) lookupOEmbed(ctx context.Context, videoID string) (Metadata, error) {
	watchURL := "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
	reqURL := oembedEndpoint + "?url=" + url.QueryEscape(watchURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to create oembed request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to call oembed endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusBadRequest, http.StatusNotFound:
			return Metadata{}, ErrMediaNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			return Metadata{}, ErrMediaNotEmbeddable
		default:
			return Metadata{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
	}

	var meta Metadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return Metadata{}, fmt.Errorf("failed to decode oembed response: %w", err)
	}

	return meta, nil
}

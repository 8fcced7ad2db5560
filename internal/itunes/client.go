// Package itunes searches the iTunes catalog. The API is keyless, so
// it serves as the default search provider when no Spotify credentials
// are configured.
package itunes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tunelog-labs/tunelog/internal/catalog"
)

const (
	defaultBaseURL = "https://itunes.apple.com/search"
	defaultLimit   = 10
	userAgent      = "tunelog/1.0"
)

// Client talks to the iTunes Search API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates an iTunes search client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
	}
}

type searchResponse struct {
	ResultCount int `json:"resultCount"`
	Results     []struct {
		TrackID        int    `json:"trackId"`
		TrackName      string `json:"trackName"`
		ArtistName     string `json:"artistName"`
		CollectionName string `json:"collectionName"`
		PreviewURL     string `json:"previewUrl"`
	} `json:"results"`
}

// Search queries the song entity. A non-positive limit asks for ten
// results.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]catalog.Song, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	params := url.Values{}
	params.Set("term", query)
	params.Set("entity", "song")
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building itunes request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching itunes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("itunes search: unexpected status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding itunes response: %w", err)
	}

	songs := make([]catalog.Song, 0, len(body.Results))
	for _, r := range body.Results {
		songs = append(songs, catalog.Song{
			ID:         strconv.Itoa(r.TrackID),
			Title:      r.TrackName,
			Artist:     r.ArtistName,
			Album:      r.CollectionName,
			PreviewURL: r.PreviewURL,
		})
	}
	return songs, nil
}

var _ catalog.Searcher = (*Client)(nil)

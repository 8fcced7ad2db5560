// Package spotify adapts the Spotify Web API to the engine's catalog
// interfaces.
package spotify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"

	"github.com/tunelog-labs/tunelog/internal/catalog"
)

const defaultSearchLimit = 10

// Client wraps the Spotify API client with engine-shaped methods.
type Client struct {
	api *spotify.Client
}

// New creates a client over an already authenticated HTTP client.
func New(httpClient *http.Client) *Client {
	return &Client{api: spotify.New(httpClient, spotify.WithRetry(true))}
}

// UserID returns the linked account's Spotify ID.
func (c *Client) UserID(ctx context.Context) (string, error) {
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("getting current user: %w", err)
	}
	return user.ID, nil
}

// Search queries the track catalog.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]catalog.Song, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	result, err := c.api.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("searching tracks: %w", err)
	}
	if result.Tracks == nil {
		return nil, nil
	}

	songs := make([]catalog.Song, 0, len(result.Tracks.Tracks))
	for _, track := range result.Tracks.Tracks {
		songs = append(songs, convertTrack(track))
	}
	return songs, nil
}

// convertTrack maps a Spotify track to a catalog song. Only the first
// listed artist is kept; the engine records a single artist per song.
func convertTrack(track spotify.FullTrack) catalog.Song {
	song := catalog.Song{
		ID:         track.ID.String(),
		Title:      track.Name,
		Album:      track.Album.Name,
		PreviewURL: track.PreviewURL,
	}
	if len(track.Artists) > 0 {
		song.Artist = track.Artists[0].Name
	}
	return song
}

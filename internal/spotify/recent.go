package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"

	"github.com/tunelog-labs/tunelog/internal/catalog"
)

// maxRecentlyPlayed is the largest page the API serves.
const maxRecentlyPlayed = 50

// RecentlyPlayed folds the account's recent plays into per-song
// aggregates ready for reconciliation.
func (c *Client) RecentlyPlayed(ctx context.Context) ([]catalog.RecentSong, error) {
	items, err := c.api.PlayerRecentlyPlayedOpt(ctx, &spotify.RecentlyPlayedOptions{Limit: maxRecentlyPlayed})
	if err != nil {
		return nil, fmt.Errorf("fetching recently played: %w", err)
	}
	return foldRecent(items), nil
}

// foldRecent collapses play items into one aggregate per song, in
// first-seen order. Each play adds its track length, truncated to
// whole minutes.
func foldRecent(items []spotify.RecentlyPlayedItem) []catalog.RecentSong {
	index := make(map[songKey]int)
	var songs []catalog.RecentSong
	for _, item := range items {
		key := songKey{title: item.Track.Name, artist: firstArtist(item.Track)}
		i, ok := index[key]
		if !ok {
			i = len(songs)
			index[key] = i
			songs = append(songs, catalog.RecentSong{
				Title:  item.Track.Name,
				Artist: firstArtist(item.Track),
				Album:  item.Track.Album.Name,
			})
		}
		songs[i].PlayCount++
		songs[i].TotalMinutes += int(item.Track.Duration) / 60000
	}
	return songs
}

func firstArtist(track spotify.SimpleTrack) string {
	if len(track.Artists) == 0 {
		return ""
	}
	return track.Artists[0].Name
}

type songKey struct {
	title  string
	artist string
}

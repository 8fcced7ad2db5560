// Package catalog defines the song types shared by search and sync
// providers, plus query-side helpers for ranking and caching results.
package catalog

import "context"

// Song is a search result from a catalog provider.
type Song struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

// RecentSong is a provider-side aggregate of recent plays for one
// song: how many times it was played and roughly how long in total.
type RecentSong struct {
	Title        string
	Artist       string
	Album        string
	PlayCount    int
	TotalMinutes int
}

// Searcher looks up songs by free-text query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Song, error)
}

// RecentSource reports aggregated recent plays for reconciliation.
type RecentSource interface {
	RecentlyPlayed(ctx context.Context) ([]RecentSong, error)
}

// Package history maintains the local log of play sessions.
//
// The log is append-only: sessions are immutable once created and are
// never individually removed, only cleared all at once. State is
// persisted to a SnapshotStore on every mutation; the in-memory log
// stays authoritative even when a write fails.
package history

import (
	"time"

	"github.com/google/uuid"
)

// PlaySession is one recorded playback occurrence, real or synthesized.
type PlaySession struct {
	ID         string    `json:"id"`
	SongTitle  string    `json:"songTitle"`
	ArtistName string    `json:"artistName"`
	AlbumTitle string    `json:"albumTitle"`
	Timestamp  time.Time `json:"timestamp"`

	// Duration is elapsed playback time in seconds. It may be estimated
	// from provider aggregates rather than measured.
	Duration int `json:"duration"`
}

// NewSession creates a PlaySession with a fresh ID.
// Negative durations are clamped to zero.
func NewSession(title, artist, album string, ts time.Time, durationSeconds int) PlaySession {
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	return PlaySession{
		ID:         uuid.NewString(),
		SongTitle:  title,
		ArtistName: artist,
		AlbumTitle: album,
		Timestamp:  ts,
		Duration:   durationSeconds,
	}
}

// Minutes returns the session's whole-minute contribution.
// Partial minutes are truncated per session, never rounded.
func (s PlaySession) Minutes() int {
	return s.Duration / 60
}

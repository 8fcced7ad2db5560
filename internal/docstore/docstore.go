// Package docstore persists user-facing documents: profiles, song
// ratings, pins and the activity feed.
//
// Two implementations are provided. Postgres backs real deployments
// and creates its own tables on startup; Memory keeps everything in
// maps so the engine runs without a database.
package docstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

// Activity kinds.
const (
	ActivityRating = "rating"
	ActivityPin    = "pin"
	ActivitySync   = "sync"
)

const defaultActivityLimit = 20

// User is the profile of the engine's owner.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Rating is a 1 to 5 star verdict on a song. A song carries at most
// one rating; rating it again replaces the stars.
type Rating struct {
	ID         string    `json:"id"`
	SongTitle  string    `json:"songTitle"`
	ArtistName string    `json:"artistName"`
	Stars      int       `json:"stars"`
	RatedAt    time.Time `json:"ratedAt"`
}

// Pin marks a song to keep on hand.
type Pin struct {
	ID         string    `json:"id"`
	SongTitle  string    `json:"songTitle"`
	ArtistName string    `json:"artistName"`
	AlbumTitle string    `json:"albumTitle"`
	PinnedAt   time.Time `json:"pinnedAt"`
}

// Activity is one entry of the activity feed.
type Activity struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Detail     string    `json:"detail"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Store persists documents.
type Store interface {
	SaveUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)

	UpsertRating(ctx context.Context, rating *Rating) error
	ListRatings(ctx context.Context) ([]Rating, error)

	AddPin(ctx context.Context, pin *Pin) error
	RemovePin(ctx context.Context, id string) error
	ListPins(ctx context.Context) ([]Pin, error)

	AddActivity(ctx context.Context, activity *Activity) error
	RecentActivity(ctx context.Context, limit int) ([]Activity, error)

	Close()
}

package docstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-memory Store for development and tests.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]User
	ratings  map[ratingKey]Rating
	pins     map[string]Pin
	activity []Activity
}

type ratingKey struct {
	title  string
	artist string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:   make(map[string]User),
		ratings: make(map[ratingKey]Rating),
		pins:    make(map[string]Pin),
	}
}

func (m *Memory) SaveUser(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if existing, ok := m.users[user.ID]; ok {
		user.CreatedAt = existing.CreatedAt
	} else {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	m.users[user.ID] = *user
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (m *Memory) UpsertRating(_ context.Context, rating *Rating) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := ratingKey{title: rating.SongTitle, artist: rating.ArtistName}
	if existing, ok := m.ratings[key]; ok {
		rating.ID = existing.ID
	} else if rating.ID == "" {
		rating.ID = uuid.NewString()
	}
	rating.RatedAt = time.Now()
	m.ratings[key] = *rating
	return nil
}

func (m *Memory) ListRatings(_ context.Context) ([]Rating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ratings := make([]Rating, 0, len(m.ratings))
	for _, r := range m.ratings {
		ratings = append(ratings, r)
	}
	slices.SortFunc(ratings, func(a, b Rating) int {
		return b.RatedAt.Compare(a.RatedAt)
	})
	return ratings, nil
}

func (m *Memory) AddPin(_ context.Context, pin *Pin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pin.ID == "" {
		pin.ID = uuid.NewString()
	}
	if pin.PinnedAt.IsZero() {
		pin.PinnedAt = time.Now()
	}
	m.pins[pin.ID] = *pin
	return nil
}

func (m *Memory) RemovePin(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pins[id]; !ok {
		return ErrNotFound
	}
	delete(m.pins, id)
	return nil
}

func (m *Memory) ListPins(_ context.Context) ([]Pin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pins := make([]Pin, 0, len(m.pins))
	for _, pin := range m.pins {
		pins = append(pins, pin)
	}
	slices.SortFunc(pins, func(a, b Pin) int {
		return b.PinnedAt.Compare(a.PinnedAt)
	})
	return pins, nil
}

func (m *Memory) AddActivity(_ context.Context, activity *Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.OccurredAt.IsZero() {
		activity.OccurredAt = time.Now()
	}
	m.activity = append(m.activity, *activity)
	return nil
}

func (m *Memory) RecentActivity(_ context.Context, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]Activity, len(m.activity))
	copy(entries, m.activity)
	slices.SortStableFunc(entries, func(a, b Activity) int {
		return b.OccurredAt.Compare(a.OccurredAt)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() {}

var _ Store = (*Memory)(nil)

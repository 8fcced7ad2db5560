package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the durable Store.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL, verifies the connection and
// creates missing tables.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ratings (
		id TEXT PRIMARY KEY,
		song_title TEXT NOT NULL,
		artist_name TEXT NOT NULL,
		stars INT NOT NULL,
		rated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (song_title, artist_name)
	);

	CREATE TABLE IF NOT EXISTS pins (
		id TEXT PRIMARY KEY,
		song_title TEXT NOT NULL,
		artist_name TEXT NOT NULL,
		album_title TEXT NOT NULL DEFAULT '',
		pinned_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activity (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		detail TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	);
	`
	_, err := p.pool.Exec(ctx, schema)
	return err
}

// Pool returns the underlying connection pool for health checks.
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// SaveUser creates or updates a user profile.
func (p *Postgres) SaveUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, display_name, email, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			email = EXCLUDED.email,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err := p.pool.QueryRow(ctx, query,
		user.ID,
		user.DisplayName,
		user.Email,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (p *Postgres) GetUser(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, display_name, email, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user User
	err := p.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.DisplayName,
		&user.Email,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &user, nil
}

// UpsertRating records stars for a song, replacing any prior rating
// of the same song. The rating keeps the original row's ID.
func (p *Postgres) UpsertRating(ctx context.Context, rating *Rating) error {
	if rating.ID == "" {
		rating.ID = uuid.NewString()
	}
	query := `
		INSERT INTO ratings (id, song_title, artist_name, stars, rated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (song_title, artist_name) DO UPDATE SET
			stars = EXCLUDED.stars,
			rated_at = NOW()
		RETURNING id, rated_at
	`
	err := p.pool.QueryRow(ctx, query,
		rating.ID,
		rating.SongTitle,
		rating.ArtistName,
		rating.Stars,
	).Scan(&rating.ID, &rating.RatedAt)
	if err != nil {
		return fmt.Errorf("upserting rating: %w", err)
	}
	return nil
}

// ListRatings returns all ratings, most recent first.
func (p *Postgres) ListRatings(ctx context.Context) ([]Rating, error) {
	query := `
		SELECT id, song_title, artist_name, stars, rated_at
		FROM ratings
		ORDER BY rated_at DESC
	`
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying ratings: %w", err)
	}
	defer rows.Close()

	var ratings []Rating
	for rows.Next() {
		var r Rating
		if err := rows.Scan(&r.ID, &r.SongTitle, &r.ArtistName, &r.Stars, &r.RatedAt); err != nil {
			return nil, fmt.Errorf("scanning rating: %w", err)
		}
		ratings = append(ratings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ratings: %w", err)
	}
	return ratings, nil
}

// AddPin stores a pin, assigning an ID and timestamp when absent.
func (p *Postgres) AddPin(ctx context.Context, pin *Pin) error {
	if pin.ID == "" {
		pin.ID = uuid.NewString()
	}
	if pin.PinnedAt.IsZero() {
		pin.PinnedAt = time.Now()
	}
	query := `
		INSERT INTO pins (id, song_title, artist_name, album_title, pinned_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := p.pool.Exec(ctx, query,
		pin.ID,
		pin.SongTitle,
		pin.ArtistName,
		pin.AlbumTitle,
		pin.PinnedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting pin: %w", err)
	}
	return nil
}

// RemovePin deletes a pin by ID.
func (p *Postgres) RemovePin(ctx context.Context, id string) error {
	result, err := p.pool.Exec(ctx, `DELETE FROM pins WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting pin: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPins returns all pins, most recent first.
func (p *Postgres) ListPins(ctx context.Context) ([]Pin, error) {
	query := `
		SELECT id, song_title, artist_name, album_title, pinned_at
		FROM pins
		ORDER BY pinned_at DESC
	`
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying pins: %w", err)
	}
	defer rows.Close()

	var pins []Pin
	for rows.Next() {
		var pin Pin
		if err := rows.Scan(&pin.ID, &pin.SongTitle, &pin.ArtistName, &pin.AlbumTitle, &pin.PinnedAt); err != nil {
			return nil, fmt.Errorf("scanning pin: %w", err)
		}
		pins = append(pins, pin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pins: %w", err)
	}
	return pins, nil
}

// AddActivity appends a feed entry, assigning an ID and timestamp when
// absent.
func (p *Postgres) AddActivity(ctx context.Context, activity *Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.OccurredAt.IsZero() {
		activity.OccurredAt = time.Now()
	}
	query := `
		INSERT INTO activity (id, kind, detail, occurred_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := p.pool.Exec(ctx, query,
		activity.ID,
		activity.Kind,
		activity.Detail,
		activity.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("inserting activity: %w", err)
	}
	return nil
}

// RecentActivity returns the latest feed entries, newest first.
// A non-positive limit returns the 20 most recent.
func (p *Postgres) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	query := `
		SELECT id, kind, detail, occurred_at
		FROM activity
		ORDER BY occurred_at DESC
		LIMIT $1
	`
	rows, err := p.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying activity: %w", err)
	}
	defer rows.Close()

	var entries []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.Kind, &a.Detail, &a.OccurredAt); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		entries = append(entries, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activity: %w", err)
	}
	return entries, nil
}

var _ Store = (*Postgres)(nil)

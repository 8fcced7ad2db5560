// Package reconcile merges provider-side play aggregates into the
// session log.
//
// A provider reports totals per song, not individual plays, so the
// reconciler synthesizes one session per counted play and estimates
// each duration by splitting the reported minutes evenly. A song
// already recorded anywhere in the log is never imported again.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tunelog-labs/tunelog/internal/catalog"
	"github.com/tunelog-labs/tunelog/internal/history"
)

// ErrSyncTooRecent means the cooldown since the last run has not
// elapsed.
var ErrSyncTooRecent = errors.New("sync ran too recently")

// DefaultCooldown is the minimum pause between provider syncs.
const DefaultCooldown = 15 * time.Minute

// Service reconciles provider aggregates into a history store.
type Service struct {
	store    *history.Store
	logger   *slog.Logger
	now      func() time.Time
	cooldown time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithCooldown overrides the pause between syncs. Zero disables the
// gate entirely.
func WithCooldown(d time.Duration) Option {
	return func(s *Service) {
		s.cooldown = d
	}
}

// WithLogger overrides the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithNow overrides the time source, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a reconciliation service over store.
func New(store *history.Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		logger:   slog.Default(),
		now:      time.Now,
		cooldown: DefaultCooldown,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result reports what one reconciliation run did.
type Result struct {
	// Appended is how many sessions were synthesized and recorded.
	Appended int `json:"appended"`

	// Skipped counts provider entries dropped as duplicates or malformed.
	Skipped int `json:"skipped"`

	SyncedAt time.Time `json:"syncedAt"`
}

// CanSync reports whether a run is allowed now, and if not, when the
// next one is.
func (s *Service) CanSync() (bool, time.Time) {
	if s.cooldown == 0 {
		return true, time.Time{}
	}
	last := s.store.LastSync()
	if last.IsZero() {
		return true, time.Time{}
	}
	next := last.Add(s.cooldown)
	if s.now().Before(next) {
		return false, next
	}
	return true, time.Time{}
}

// Run fetches recent plays from source and reconciles them. Unless
// force is set, a run inside the cooldown fails with ErrSyncTooRecent.
func (s *Service) Run(ctx context.Context, source catalog.RecentSource, force bool) (*Result, error) {
	if !force {
		if ok, next := s.CanSync(); !ok {
			return nil, fmt.Errorf("%w: next sync available at %s", ErrSyncTooRecent, next.Format(time.RFC3339))
		}
	}

	recent, err := source.RecentlyPlayed(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching recent plays: %w", err)
	}

	result := s.Reconcile(ctx, recent)
	return &result, nil
}

// Reconcile merges the given aggregates into the store. It never
// fails: malformed entries are logged and skipped, and the sync cursor
// advances even when nothing was appended.
func (s *Service) Reconcile(ctx context.Context, recent []catalog.RecentSong) Result {
	now := s.now()

	seen := make(map[songKey]struct{})
	for _, existing := range s.store.All() {
		seen[songKey{title: existing.SongTitle, artist: existing.ArtistName}] = struct{}{}
	}

	var appended []history.PlaySession
	result := Result{SyncedAt: now}
	for _, r := range recent {
		if r.PlayCount <= 0 || r.TotalMinutes < 0 {
			s.logger.Warn("skipping malformed provider entry",
				"title", r.Title,
				"artist", r.Artist,
				"playCount", r.PlayCount,
				"totalMinutes", r.TotalMinutes,
			)
			result.Skipped++
			continue
		}

		key := songKey{title: r.Title, artist: r.Artist}
		if _, dup := seen[key]; dup {
			result.Skipped++
			continue
		}
		seen[key] = struct{}{}

		duration := r.TotalMinutes * 60 / r.PlayCount
		for i := 0; i < r.PlayCount; i++ {
			appended = append(appended, history.NewSession(r.Title, r.Artist, r.Album, now, duration))
		}
		result.Appended += r.PlayCount
	}

	if len(appended) > 0 {
		s.store.AppendBatch(ctx, appended)
	}
	s.store.SetLastSync(ctx, now)

	s.logger.Info("reconciled provider plays",
		"appended", result.Appended,
		"skipped", result.Skipped,
	)
	return result
}

type songKey struct {
	title  string
	artist string
}

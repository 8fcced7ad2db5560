// Command tunelog runs the listening analytics engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/tunelog-labs/tunelog/internal/auth"
	"github.com/tunelog-labs/tunelog/internal/catalog"
	"github.com/tunelog-labs/tunelog/internal/config"
	"github.com/tunelog-labs/tunelog/internal/docstore"
	"github.com/tunelog-labs/tunelog/internal/health"
	"github.com/tunelog-labs/tunelog/internal/history"
	"github.com/tunelog-labs/tunelog/internal/itunes"
	"github.com/tunelog-labs/tunelog/internal/reconcile"
	"github.com/tunelog-labs/tunelog/internal/spotify"
	"github.com/tunelog-labs/tunelog/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, errs := config.Load(os.Getenv("TUNELOG_CONFIG"))
	if len(errs) > 0 {
		return fmt.Errorf("loading config: %w", errors.Join(errs...))
	}

	logger := web.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx := context.Background()
	checks := make(map[string]health.Checker)

	// Snapshot backend for the session log.
	var snap history.SnapshotStore
	switch {
	case cfg.RedisAddr != "":
		rs, err := history.NewRedisStore(cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rs.Close()
		checks["redis"] = health.NewRedisChecker(rs.Client())
		snap = rs
		logger.Info("snapshots in redis", "addr", cfg.RedisAddr)
	case cfg.SnapshotDir != "":
		snap = history.NewFileStore(cfg.SnapshotDir)
		logger.Info("snapshots on disk", "dir", cfg.SnapshotDir)
	default:
		files, err := history.DefaultFileStore()
		if err != nil {
			return fmt.Errorf("resolving snapshot directory: %w", err)
		}
		snap = files
		logger.Info("snapshots on disk", "dir", files.Dir())
	}

	store := history.NewStore(ctx, snap, logger)
	logger.Info("session log loaded", "sessions", store.Len())

	// Document store: Postgres when configured, in-memory otherwise.
	var docs docstore.Store
	if cfg.DatabaseURL != "" {
		pg, err := docstore.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		checks["postgres"] = health.NewPostgresChecker(pg.Pool())
		docs = pg
	} else {
		logger.Warn("DATABASE_URL not set, ratings and pins will not survive restarts")
		docs = docstore.NewMemory()
	}
	defer docs.Close()

	reconciler := reconcile.New(store,
		reconcile.WithCooldown(cfg.SyncCooldown),
		reconcile.WithLogger(logger),
	)

	// Spotify is optional: without credentials the engine still records
	// sessions and serves analytics, it just cannot sync.
	var authenticator *auth.Authenticator
	var provider *spotify.Provider
	if cfg.SpotifyEnabled() {
		cache, err := auth.DefaultTokenCache()
		if err != nil {
			return fmt.Errorf("resolving token cache: %w", err)
		}
		authenticator = auth.New(cfg.SpotifyClientID, cfg.SpotifyClientSecret, cfg.SpotifyRedirectURL, cache)
		provider = spotify.NewProvider(authenticator)
	}

	var recent catalog.RecentSource
	if provider != nil {
		recent = provider
	}

	var searcher catalog.Searcher = itunes.NewClient()
	if cfg.SearchProvider == config.SearchProviderSpotify {
		searcher = provider
	}

	metrics := web.NewMetrics()
	search := catalog.NewCache(searcher,
		catalog.WithTTL(cfg.SearchCacheTTL),
		catalog.WithObserver(metrics.SearchCacheHit, metrics.SearchCacheMiss),
	)

	server, err := web.NewServer(web.ServerConfig{
		Addr:           cfg.Addr,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
		Store:          store,
		Reconciler:     reconciler,
		Docs:           docs,
		Search:         search,
		Recent:         recent,
		Auth:           authenticator,
		Checks:         checks,
		Metrics:        metrics,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return server.Run()
}

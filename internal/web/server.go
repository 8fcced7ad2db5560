package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tunelog-labs/tunelog/internal/auth"
	"github.com/tunelog-labs/tunelog/internal/catalog"
	"github.com/tunelog-labs/tunelog/internal/docstore"
	"github.com/tunelog-labs/tunelog/internal/health"
	"github.com/tunelog-labs/tunelog/internal/history"
	"github.com/tunelog-labs/tunelog/internal/reconcile"
)

// DefaultAddr is the default server address.
const DefaultAddr = "127.0.0.1:8080"

// ServerConfig holds server dependencies. Store is required; everything
// else degrades gracefully when absent.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	Logger         *slog.Logger
	Store          *history.Store
	Reconciler     *reconcile.Service
	Docs           docstore.Store
	Search         catalog.Searcher
	Recent         catalog.RecentSource
	Auth           *auth.Authenticator
	Checks         map[string]health.Checker
	Metrics        *Metrics
	Registry       *prometheus.Registry
}

// Server is the engine's HTTP server.
type Server struct {
	router   chi.Router
	server   *http.Server
	handlers *Handlers
	logger   *slog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("server config: history store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if err := metrics.Register(registry); err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	handlers := NewHandlers(HandlerConfig{
		Logger:     logger,
		Store:      cfg.Store,
		Reconciler: cfg.Reconciler,
		Docs:       cfg.Docs,
		Search:     cfg.Search,
		Recent:     cfg.Recent,
		Auth:       cfg.Auth,
		Checks:     cfg.Checks,
		Metrics:    metrics,
	})

	router := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		router:   router,
		handlers: handlers,
		logger:   logger,
	}

	s.setupMiddleware(metrics, origins)
	s.setupRoutes(registry)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware(metrics *Metrics, origins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestLogger(s.logger))
	s.router.Use(metrics.Instrument)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// setupRoutes configures routes for the API.
func (s *Server) setupRoutes(registry *prometheus.Registry) {
	s.router.Get("/healthz", s.handlers.Health)
	s.router.Method(http.MethodGet, "/metrics", MetricsHandler(registry))

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/stats", func(r chi.Router) {
			r.Get("/songs", s.handlers.TopSongs)
			r.Get("/artists", s.handlers.TopArtists)
			r.Get("/daily", s.handlers.DailyListening)
			r.Get("/hourly", s.handlers.HourlyDistribution)
			r.Get("/summary", s.handlers.Summary)
			r.Get("/eras", s.handlers.Eras)
		})

		r.Get("/history", s.handlers.ListHistory)
		r.Post("/history", s.handlers.RecordSession)
		r.Delete("/history", s.handlers.ClearHistory)

		r.Post("/sync", s.handlers.Sync)
		r.Get("/search", s.handlers.Search)

		r.Get("/ratings", s.handlers.ListRatings)
		r.Put("/ratings", s.handlers.UpsertRating)

		r.Get("/pins", s.handlers.ListPins)
		r.Post("/pins", s.handlers.AddPin)
		r.Delete("/pins/{id}", s.handlers.RemovePin)

		r.Get("/activity", s.handlers.Activity)
	})

	// The callback path must match the Spotify app configuration.
	s.router.Get("/auth/login", s.handlers.Login)
	s.router.Get("/auth/callback", s.handlers.Callback)
	s.router.Post("/auth/logout", s.handlers.Logout)
}

// Handler returns the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		s.logger.Info("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

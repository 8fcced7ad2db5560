package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tunelog-labs/tunelog/internal/analytics"
	"github.com/tunelog-labs/tunelog/internal/auth"
	"github.com/tunelog-labs/tunelog/internal/catalog"
	"github.com/tunelog-labs/tunelog/internal/docstore"
	"github.com/tunelog-labs/tunelog/internal/health"
	"github.com/tunelog-labs/tunelog/internal/history"
	"github.com/tunelog-labs/tunelog/internal/reconcile"
)

const (
	defaultTopLimit = 10
	maxTopLimit     = 100

	defaultDays = 7
	maxDays     = 90

	defaultHistoryLimit = 50
	maxHistoryLimit     = 500

	defaultActivityLimit = 20
	maxActivityLimit     = 100

	maxEraClusters = 10

	providerTimeout    = 30 * time.Second
	healthCheckTimeout = 2 * time.Second

	oauthStateCookie = "oauth_state"
)

// HandlerConfig holds handler dependencies.
type HandlerConfig struct {
	Logger     *slog.Logger
	Store      *history.Store
	Reconciler *reconcile.Service
	Docs       docstore.Store
	Search     catalog.Searcher
	Recent     catalog.RecentSource
	Auth       *auth.Authenticator
	Checks     map[string]health.Checker
	Metrics    *Metrics
}

// Handlers contains the HTTP handlers for the API.
//
// The history store does no internal locking, so mu serializes every
// access to it; aggregation always runs on the copy All returns.
type Handlers struct {
	logger     *slog.Logger
	store      *history.Store
	reconciler *reconcile.Service
	docs       docstore.Store
	search     catalog.Searcher
	recent     catalog.RecentSource
	auth       *auth.Authenticator
	checks     map[string]health.Checker
	metrics    *Metrics

	mu sync.Mutex
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg HandlerConfig) *Handlers {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Handlers{
		logger:     logger,
		store:      cfg.Store,
		reconciler: cfg.Reconciler,
		docs:       cfg.Docs,
		search:     cfg.Search,
		recent:     cfg.Recent,
		auth:       cfg.Auth,
		checks:     cfg.Checks,
		metrics:    metrics,
	}
}

// sessions returns a stable copy of the session log.
func (h *Handlers) sessions() []history.PlaySession {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.All()
}

// TopSongs ranks songs by play count (GET /api/stats/songs).
func (h *Handlers) TopSongs(w http.ResponseWriter, r *http.Request) {
	window, ok := parseWindow(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", defaultTopLimit, maxTopLimit)

	songs := analytics.TopSongs(h.sessions(), window, time.Now(), limit)
	if songs == nil {
		songs = []analytics.SongStat{}
	}
	WriteJSON(w, http.StatusOK, songs)
}

// TopArtists ranks artists by play count (GET /api/stats/artists).
func (h *Handlers) TopArtists(w http.ResponseWriter, r *http.Request) {
	window, ok := parseWindow(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", defaultTopLimit, maxTopLimit)

	artists := analytics.TopArtists(h.sessions(), window, time.Now(), limit)
	if artists == nil {
		artists = []analytics.ArtistStat{}
	}
	WriteJSON(w, http.StatusOK, artists)
}

// DailyListening returns per-day listening minutes (GET /api/stats/daily).
func (h *Handlers) DailyListening(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", defaultDays, maxDays)
	WriteJSON(w, http.StatusOK, analytics.DailyListening(h.sessions(), time.Now(), days))
}

// HourlyDistribution returns listening minutes by hour of day
// (GET /api/stats/hourly).
func (h *Handlers) HourlyDistribution(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, analytics.HourlyDistribution(h.sessions()))
}

// Summary returns aggregate listening stats (GET /api/stats/summary).
func (h *Handlers) Summary(w http.ResponseWriter, r *http.Request) {
	window, ok := parseWindow(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, analytics.SummaryStats(h.sessions(), window, time.Now()))
}

// Eras clusters listening history into named phases (GET /api/stats/eras).
func (h *Handlers) Eras(w http.ResponseWriter, r *http.Request) {
	cfg := analytics.DefaultEraConfig()
	cfg.NumClusters = queryInt(r, "k", cfg.NumClusters, maxEraClusters)

	eras := analytics.DetectEras(h.sessions(), cfg)
	if eras == nil {
		eras = []analytics.Era{}
	}
	WriteJSON(w, http.StatusOK, eras)
}

// historyPage is the GET /api/history response body.
type historyPage struct {
	Total    int                   `json:"total"`
	Sessions []history.PlaySession `json:"sessions"`
}

// ListHistory returns recent sessions, newest first (GET /api/history).
func (h *Handlers) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultHistoryLimit, maxHistoryLimit)

	sessions := h.sessions()
	total := len(sessions)
	slices.Reverse(sessions)
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}
	if sessions == nil {
		sessions = []history.PlaySession{}
	}
	WriteJSON(w, http.StatusOK, historyPage{Total: total, Sessions: sessions})
}

// recordSessionRequest is the POST /api/history request body.
type recordSessionRequest struct {
	SongTitle       string `json:"songTitle"`
	ArtistName      string `json:"artistName"`
	AlbumTitle      string `json:"albumTitle"`
	DurationSeconds int    `json:"durationSeconds"`
}

// RecordSession appends one play session (POST /api/history).
func (h *Handlers) RecordSession(w http.ResponseWriter, r *http.Request) {
	var req recordSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.SongTitle == "" || req.ArtistName == "" {
		WriteError(w, http.StatusBadRequest, ErrCodeValidation, "songTitle and artistName are required")
		return
	}
	if req.DurationSeconds < 0 {
		WriteError(w, http.StatusBadRequest, ErrCodeValidation, "durationSeconds must not be negative")
		return
	}

	session := history.NewSession(req.SongTitle, req.ArtistName, req.AlbumTitle, time.Now(), req.DurationSeconds)

	h.mu.Lock()
	h.store.Append(r.Context(), session)
	h.mu.Unlock()

	h.metrics.SessionRecorded()
	WriteJSON(w, http.StatusCreated, session)
}

// ClearHistory wipes the session log (DELETE /api/history).
func (h *Handlers) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.store.Clear(r.Context())
	h.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// Sync reconciles provider listening data into the log (POST /api/sync).
func (h *Handlers) Sync(w http.ResponseWriter, r *http.Request) {
	if h.reconciler == nil || h.recent == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "no listening provider is configured")
		return
	}

	force := r.URL.Query().Get("force") == "true"

	ctx, cancel := context.WithTimeout(r.Context(), providerTimeout)
	defer cancel()

	h.mu.Lock()
	result, err := h.reconciler.Run(ctx, h.recent, force)
	h.mu.Unlock()

	if err != nil {
		switch {
		case errors.Is(err, reconcile.ErrSyncTooRecent):
			h.mu.Lock()
			_, next := h.reconciler.CanSync()
			h.mu.Unlock()
			if !next.IsZero() {
				seconds := int(time.Until(next).Seconds()) + 1
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
			}
			WriteError(w, http.StatusTooManyRequests, ErrCodeRateLimited, err.Error())
		case errors.Is(err, auth.ErrNoToken):
			WriteError(w, http.StatusUnauthorized, ErrCodeNotAuthenticated, err.Error())
		default:
			h.logger.Error("sync failed", "error", err)
			WriteError(w, http.StatusBadGateway, ErrCodeProviderError, err.Error())
		}
		return
	}

	h.metrics.ReconcileRun(result.Appended)
	h.recordActivity(r.Context(), docstore.ActivitySync, fmt.Sprintf("reconciled %d new sessions", result.Appended))
	WriteJSON(w, http.StatusOK, result)
}

// Search queries the song catalog (GET /api/search).
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	if h.search == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "no search provider is configured")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, "q parameter is required")
		return
	}
	limit := queryInt(r, "limit", defaultTopLimit, maxTopLimit)

	ctx, cancel := context.WithTimeout(r.Context(), providerTimeout)
	defer cancel()

	songs, err := h.search.Search(ctx, query, limit)
	if err != nil {
		if errors.Is(err, auth.ErrNoToken) {
			WriteError(w, http.StatusUnauthorized, ErrCodeNotAuthenticated, err.Error())
			return
		}
		h.logger.Error("search failed", "query", query, "error", err)
		WriteError(w, http.StatusBadGateway, ErrCodeProviderError, err.Error())
		return
	}

	ranked := catalog.Rank(query, songs)
	if ranked == nil {
		ranked = []catalog.Song{}
	}
	WriteJSON(w, http.StatusOK, ranked)
}

// ratingRequest is the PUT /api/ratings request body.
type ratingRequest struct {
	SongTitle  string `json:"songTitle"`
	ArtistName string `json:"artistName"`
	Stars      int    `json:"stars"`
}

// UpsertRating creates or replaces a song rating (PUT /api/ratings).
func (h *Handlers) UpsertRating(w http.ResponseWriter, r *http.Request) {
	if h.docs == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "no document store is configured")
		return
	}

	var req ratingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.SongTitle == "" || req.ArtistName == "" {
		WriteError(w, http.StatusBadRequest, ErrCodeValidation, "songTitle and artistName are required")
		return
	}
	if req.Stars < 1 || req.Stars > 5 {
		WriteError(w, http.StatusBadRequest, ErrCodeValidation, "stars must be between 1 and 5")
		return
	}

	rating := docstore.Rating{
		SongTitle:  req.SongTitle,
		ArtistName: req.ArtistName,
		Stars:      req.Stars,
	}
	if err := h.docs.UpsertRating(r.Context(), &rating); err != nil {
		h.logger.Error("saving rating", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternal, "saving rating failed")
		return
	}

	h.recordActivity(r.Context(), docstore.ActivityRating,
		fmt.Sprintf("rated %q by %s: %d stars", rating.SongTitle, rating.ArtistName, rating.Stars))
	WriteJSON(w, http.StatusOK, rating)
}

// ListRatings returns all song ratings (GET /api/ratings).
func (h *Handlers) ListRatings(w http.ResponseWriter, r *http.Request) {
	if h.docs == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "no document store is configured")
		return
	}

	ratings, err := h.docs.ListRatings(r.Context())
	if err != nil {
		h.logger.Error("listing ratings", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternal, "listing ratings failed")
		return
	}
	if ratings == nil {
		ratings = []docstore.Rating{}
	}
	WriteJSON(w, http.StatusOK, ratings)
}

// pinRequest is the POST /api/pins request body.
type pinRequest struct {
	SongTitle  string `json:"songTitle"`
	ArtistName string `json:"artistName"`
	AlbumTitle string `json:"albumTitle"`
}

// AddPin pins a song (POST /api/pins).
func (h *Handlers) AddPin(w http.ResponseWriter, r *http.Request) {
	if h.docs == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "no document store is configured")
		return
	}

	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.SongTitle == "" || req.ArtistName == "" {
		WriteError(w, http.StatusBadRequest, ErrCodeValidation, "songTitle and artistName are required")
		return
	}

	pin := docstore.Pin{
		SongTitle:  req.SongTitle,
		ArtistName: req.ArtistName,
		AlbumTitle: req.AlbumTitle,
	}
	if err := h.docs.AddPin(r.Context(), &pin); err != nil {
		h.logger.Error("saving pin", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternal, "saving pin failed")
		return
	}

	h.recordActivity(r.Context(), docstore.ActivityPin,
		fmt.Sprintf("pinned %q by %s", pin.SongTitle, pin.ArtistName))
	WriteJSON(w, http.StatusCreated, pin)
}

// RemovePin unpins a song (DELETE /api/pins/{id}).
func (h *Handlers) RemovePin(w http.ResponseWriter, r *http.Request) {
	if h.docs == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "no document store is configured")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.docs.RemovePin(r.Context(), id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			WriteError(w, http.StatusNotFound, ErrCodeNotFound, "pin not found")
			return
		}
		h.logger.Error("removing pin", "id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternal, "removing pin failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListPins returns all pinned songs (GET /api/pins).
func (h *Handlers) ListPins(w http.ResponseWriter, r *http.Request) {
	if h.docs == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "no document store is configured")
		return
	}

	pins, err := h.docs.ListPins(r.Context())
	if err != nil {
		h.logger.Error("listing pins", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternal, "listing pins failed")
		return
	}
	if pins == nil {
		pins = []docstore.Pin{}
	}
	WriteJSON(w, http.StatusOK, pins)
}

// Activity returns the recent activity feed (GET /api/activity).
func (h *Handlers) Activity(w http.ResponseWriter, r *http.Request) {
	if h.docs == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "no document store is configured")
		return
	}

	limit := queryInt(r, "limit", defaultActivityLimit, maxActivityLimit)
	activity, err := h.docs.RecentActivity(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing activity", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternal, "listing activity failed")
		return
	}
	if activity == nil {
		activity = []docstore.Activity{}
	}
	WriteJSON(w, http.StatusOK, activity)
}

// healthResponse is the GET /healthz response body.
type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health reports liveness and dependency status (GET /healthz).
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok"}
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}

	status := http.StatusOK
	for name, check := range h.checks {
		if err := check.HealthCheck(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	WriteJSON(w, status, resp)
}

// Login initiates the Spotify OAuth flow (GET /auth/login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "spotify is not configured")
		return
	}

	state, err := auth.GenerateState()
	if err != nil {
		h.logger.Error("generating oauth state", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternal, "could not start login")
		return
	}

	// Store state in a cookie for validation on callback.
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300, // 5 minutes
	})

	http.Redirect(w, r, h.auth.AuthURL(state), http.StatusTemporaryRedirect)
}

// Callback handles the OAuth callback from Spotify (GET /auth/callback).
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "spotify is not configured")
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, "missing state cookie")
		return
	}
	state := r.URL.Query().Get("state")
	if state != stateCookie.Value {
		WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, "state mismatch")
		return
	}

	// Clear the state cookie.
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("spotify auth error: %s", errMsg))
		return
	}

	if _, err := h.auth.Exchange(r.Context(), state, r); err != nil {
		h.logger.Error("exchanging oauth code", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternal, "could not complete login")
		return
	}

	h.logger.Info("spotify account linked")
	WriteJSON(w, http.StatusOK, map[string]string{"status": "authenticated"})
}

// Logout discards the cached Spotify token (POST /auth/logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "spotify is not configured")
		return
	}

	if err := h.auth.Logout(); err != nil {
		h.logger.Error("deleting cached token", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternal, "could not log out")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// recordActivity appends to the activity feed, logging failures instead
// of surfacing them.
func (h *Handlers) recordActivity(ctx context.Context, kind, detail string) {
	if h.docs == nil {
		return
	}
	activity := docstore.Activity{Kind: kind, Detail: detail}
	if err := h.docs.AddActivity(ctx, &activity); err != nil {
		h.logger.Warn("recording activity", "kind", kind, "error", err)
	}
}

// parseWindow reads the optional window query parameter, writing a 400
// on failure. The second return reports success.
func parseWindow(w http.ResponseWriter, r *http.Request) (analytics.Window, bool) {
	raw := r.URL.Query().Get("window")
	window, ok := analytics.ParseWindow(raw)
	if !ok {
		WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("unknown window %q", raw))
	}
	return window, ok
}

// queryInt parses a positive integer query parameter, falling back to
// def and capping at ceiling.
func queryInt(r *http.Request, name string, def, ceiling int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return min(n, ceiling)
}

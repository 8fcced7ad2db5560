package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tunelog-labs/tunelog/internal/analytics"
	"github.com/tunelog-labs/tunelog/internal/auth"
	"github.com/tunelog-labs/tunelog/internal/catalog"
	"github.com/tunelog-labs/tunelog/internal/docstore"
	"github.com/tunelog-labs/tunelog/internal/health"
	"github.com/tunelog-labs/tunelog/internal/history"
	"github.com/tunelog-labs/tunelog/internal/reconcile"
)

type memorySnapshot struct {
	data map[string][]byte
}

func newMemorySnapshot() *memorySnapshot {
	return &memorySnapshot{data: make(map[string][]byte)}
}

func (m *memorySnapshot) Get(_ context.Context, key string) ([]byte, error) {
	b, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return b, nil
}

func (m *memorySnapshot) Set(_ context.Context, key string, value []byte) error {
	m.data[key] = value
	return nil
}

func (m *memorySnapshot) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

type stubSearcher struct {
	songs []catalog.Song
	err   error
}

func (s *stubSearcher) Search(_ context.Context, _ string, _ int) ([]catalog.Song, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.songs, nil
}

type stubRecent struct {
	songs []catalog.RecentSong
	err   error
}

func (s *stubRecent) RecentlyPlayed(_ context.Context) ([]catalog.RecentSong, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.songs, nil
}

type stubChecker struct {
	err error
}

func (c stubChecker) HealthCheck(_ context.Context) error {
	return c.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestServer(t *testing.T, mutate func(*ServerConfig)) (*Server, *history.Store) {
	t.Helper()

	store := history.NewStore(context.Background(), newMemorySnapshot(), discardLogger())
	cfg := ServerConfig{
		Logger: discardLogger(),
		Store:  store,
		Docs:   docstore.NewMemory(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv, store
}

func doRequest(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeJSON[ErrorResponse](t, rec).Error.Code
}

func TestRecordSessionAndListHistory(t *testing.T) {
	srv, store := newTestServer(t, nil)

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/history", map[string]any{
		"songTitle":       "Pink Moon",
		"artistName":      "Nick Drake",
		"albumTitle":      "Pink Moon",
		"durationSeconds": 125,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	created := decodeJSON[history.PlaySession](t, rec)
	if created.ID == "" {
		t.Error("created session has no ID")
	}
	if created.Duration != 125 {
		t.Errorf("Duration = %d, want 125", created.Duration)
	}
	if store.Len() != 1 {
		t.Fatalf("store.Len() = %d, want 1", store.Len())
	}

	doRequest(t, srv.Handler(), http.MethodPost, "/api/history", map[string]any{
		"songTitle":       "Road",
		"artistName":      "Nick Drake",
		"durationSeconds": 121,
	})

	rec = doRequest(t, srv.Handler(), http.MethodGet, "/api/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	page := decodeJSON[historyPage](t, rec)
	if page.Total != 2 {
		t.Errorf("Total = %d, want 2", page.Total)
	}
	if len(page.Sessions) != 2 {
		t.Fatalf("len(Sessions) = %d, want 2", len(page.Sessions))
	}
	if page.Sessions[0].SongTitle != "Road" {
		t.Errorf("Sessions[0] = %q, want newest first", page.Sessions[0].SongTitle)
	}
}

func TestListHistoryLimit(t *testing.T) {
	srv, store := newTestServer(t, nil)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		store.Append(ctx, history.NewSession("Song", "Artist", "Album", time.Now(), 60))
	}

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/history?limit=2", nil)
	page := decodeJSON[historyPage](t, rec)
	if page.Total != 5 {
		t.Errorf("Total = %d, want 5", page.Total)
	}
	if len(page.Sessions) != 2 {
		t.Errorf("len(Sessions) = %d, want 2", len(page.Sessions))
	}
}

func TestRecordSessionValidation(t *testing.T) {
	srv, store := newTestServer(t, nil)

	tests := []struct {
		name string
		body map[string]any
		code string
	}{
		{
			name: "missing title",
			body: map[string]any{"artistName": "Nick Drake", "durationSeconds": 60},
			code: ErrCodeValidation,
		},
		{
			name: "missing artist",
			body: map[string]any{"songTitle": "Pink Moon", "durationSeconds": 60},
			code: ErrCodeValidation,
		},
		{
			name: "negative duration",
			body: map[string]any{"songTitle": "Pink Moon", "artistName": "Nick Drake", "durationSeconds": -1},
			code: ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/history", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if got := errorCode(t, rec); got != tt.code {
				t.Errorf("error code = %q, want %q", got, tt.code)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/history", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	if store.Len() != 0 {
		t.Errorf("store.Len() = %d, want 0 after rejected requests", store.Len())
	}
}

func TestClearHistory(t *testing.T) {
	srv, store := newTestServer(t, nil)
	store.Append(context.Background(), history.NewSession("Song", "Artist", "Album", time.Now(), 60))

	rec := doRequest(t, srv.Handler(), http.MethodDelete, "/api/history", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if store.Len() != 0 {
		t.Errorf("store.Len() = %d, want 0", store.Len())
	}
}

func TestTopSongsEndpoint(t *testing.T) {
	srv, store := newTestServer(t, nil)

	ctx := context.Background()
	now := time.Now()
	store.Append(ctx, history.NewSession("Hurt", "Johnny Cash", "American IV", now, 180))
	store.Append(ctx, history.NewSession("Hurt", "Johnny Cash", "American IV", now, 180))
	store.Append(ctx, history.NewSession("Road", "Nick Drake", "Pink Moon", now, 120))

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/stats/songs?limit=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	songs := decodeJSON[[]analytics.SongStat](t, rec)
	if len(songs) != 1 {
		t.Fatalf("len(songs) = %d, want 1", len(songs))
	}
	if songs[0].Title != "Hurt" || songs[0].PlayCount != 2 {
		t.Errorf("top song = %q (%d plays), want Hurt with 2 plays", songs[0].Title, songs[0].PlayCount)
	}
}

func TestStatsRejectUnknownWindow(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, target := range []string{
		"/api/stats/songs?window=Week",
		"/api/stats/artists?window=decade",
		"/api/stats/summary?window=bogus",
	} {
		rec := doRequest(t, srv.Handler(), http.MethodGet, target, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", target, rec.Code, http.StatusBadRequest)
		}
		if got := errorCode(t, rec); got != ErrCodeBadRequest {
			t.Errorf("%s: error code = %q, want %q", target, got, ErrCodeBadRequest)
		}
	}
}

func TestSummaryEndpoint(t *testing.T) {
	srv, store := newTestServer(t, nil)

	ctx := context.Background()
	base := time.Now().Add(-2 * time.Hour)
	for _, offset := range []time.Duration{0, 10 * time.Minute, 15 * time.Minute, 50 * time.Minute} {
		store.Append(ctx, history.NewSession("Song", "Artist", "Album", base.Add(offset), 60))
	}

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/stats/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	summary := decodeJSON[analytics.Summary](t, rec)
	if summary.TotalSongs != 4 {
		t.Errorf("TotalSongs = %d, want 4", summary.TotalSongs)
	}
	if summary.LongestSession != 3 {
		t.Errorf("LongestSession = %d, want 3", summary.LongestSession)
	}
	if summary.AverageSessionLength != 2 {
		t.Errorf("AverageSessionLength = %v, want 2", summary.AverageSessionLength)
	}
}

func TestDailyAndHourlyEndpoints(t *testing.T) {
	srv, store := newTestServer(t, nil)

	ctx := context.Background()
	store.Append(ctx, history.NewSession("Song", "Artist", "Album", time.Now(), 600))
	store.Append(ctx, history.NewSession("Song", "Artist", "Album", time.Now(), 600))

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/stats/daily?days=3", nil)
	days := decodeJSON[[]analytics.DayBucket](t, rec)
	if len(days) != 3 {
		t.Fatalf("len(days) = %d, want 3", len(days))
	}
	if days[2].Minutes != 20 {
		t.Errorf("today = %d minutes, want 20", days[2].Minutes)
	}

	rec = doRequest(t, srv.Handler(), http.MethodGet, "/api/stats/hourly", nil)
	hours := decodeJSON[[]analytics.HourBucket](t, rec)
	if len(hours) != 24 {
		t.Fatalf("len(hours) = %d, want 24", len(hours))
	}
	total := 0
	for _, b := range hours {
		total += b.Minutes
	}
	if total != 20 {
		t.Errorf("total minutes = %d, want 20", total)
	}
}

func TestErasEndpoint(t *testing.T) {
	srv, store := newTestServer(t, nil)

	ctx := context.Background()
	day := time.Date(2025, time.March, 1, 20, 0, 0, 0, time.UTC)
	store.Append(ctx, history.NewSession("Song", "Artist", "Album", day, 1800))
	store.Append(ctx, history.NewSession("Song", "Artist", "Album", day.AddDate(0, 0, 1), 1800))

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/stats/eras", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	eras := decodeJSON[[]analytics.Era](t, rec)
	if len(eras) != 1 {
		t.Fatalf("len(eras) = %d, want 1 for a two-day history", len(eras))
	}
	if eras[0].Days != 2 {
		t.Errorf("Days = %d, want 2", eras[0].Days)
	}
}

func TestSyncEndpoint(t *testing.T) {
	recent := &stubRecent{songs: []catalog.RecentSong{
		{Title: "Pink Moon", Artist: "Nick Drake", Album: "Pink Moon", PlayCount: 2, TotalMinutes: 8},
	}}

	srv, store := newTestServer(t, func(cfg *ServerConfig) {
		cfg.Recent = recent
		cfg.Reconciler = reconcile.New(cfg.Store, reconcile.WithCooldown(0), reconcile.WithLogger(discardLogger()))
	})

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/sync", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	result := decodeJSON[reconcile.Result](t, rec)
	if result.Appended != 2 {
		t.Errorf("Appended = %d, want 2", result.Appended)
	}
	if store.Len() != 2 {
		t.Errorf("store.Len() = %d, want 2", store.Len())
	}

	rec = doRequest(t, srv.Handler(), http.MethodGet, "/api/activity", nil)
	activity := decodeJSON[[]docstore.Activity](t, rec)
	if len(activity) != 1 || activity[0].Kind != docstore.ActivitySync {
		t.Errorf("activity = %+v, want one sync entry", activity)
	}
}

func TestSyncCooldown(t *testing.T) {
	recent := &stubRecent{songs: []catalog.RecentSong{
		{Title: "Pink Moon", Artist: "Nick Drake", Album: "Pink Moon", PlayCount: 1, TotalMinutes: 2},
	}}

	srv, store := newTestServer(t, func(cfg *ServerConfig) {
		cfg.Recent = recent
		cfg.Reconciler = reconcile.New(cfg.Store, reconcile.WithLogger(discardLogger()))
	})
	store.SetLastSync(context.Background(), time.Now())

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/sync", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if got := errorCode(t, rec); got != ErrCodeRateLimited {
		t.Errorf("error code = %q, want %q", got, ErrCodeRateLimited)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header not set")
	}

	rec = doRequest(t, srv.Handler(), http.MethodPost, "/api/sync?force=true", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("forced status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func TestSyncWithoutProvider(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/sync", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if got := errorCode(t, rec); got != ErrCodeUnavailable {
		t.Errorf("error code = %q, want %q", got, ErrCodeUnavailable)
	}
}

func TestSyncProviderFailure(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *ServerConfig) {
		cfg.Recent = &stubRecent{err: errors.New("rate limited upstream")}
		cfg.Reconciler = reconcile.New(cfg.Store, reconcile.WithCooldown(0), reconcile.WithLogger(discardLogger()))
	})

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/sync", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	if got := errorCode(t, rec); got != ErrCodeProviderError {
		t.Errorf("error code = %q, want %q", got, ErrCodeProviderError)
	}
}

func TestSearchEndpoint(t *testing.T) {
	searcher := &stubSearcher{songs: []catalog.Song{
		{ID: "1", Title: "Hurt (Live)", Artist: "Johnny Cash"},
		{ID: "2", Title: "Hurt", Artist: "Johnny Cash"},
	}}
	srv, _ := newTestServer(t, func(cfg *ServerConfig) {
		cfg.Search = searcher
	})

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/search?q=hurt", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	songs := decodeJSON[[]catalog.Song](t, rec)
	if len(songs) != 2 {
		t.Fatalf("len(songs) = %d, want 2", len(songs))
	}
	if songs[0].ID != "2" {
		t.Errorf("first result = %q, want the exact title match", songs[0].Title)
	}
}

func TestSearchValidation(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *ServerConfig) {
		cfg.Search = &stubSearcher{}
	})

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/search", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing q: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = doRequest(t, srv.Handler(), http.MethodGet, "/api/search?q=%20%20", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank q: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSearchProviderFailure(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *ServerConfig) {
		cfg.Search = &stubSearcher{err: errors.New("upstream down")}
	})

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/search?q=hurt", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestRatingsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv.Handler(), http.MethodPut, "/api/ratings", map[string]any{
		"songTitle":  "Hurt",
		"artistName": "Johnny Cash",
		"stars":      5,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	rating := decodeJSON[docstore.Rating](t, rec)
	if rating.ID == "" {
		t.Error("rating has no ID")
	}

	for _, stars := range []int{0, 6, -1} {
		rec := doRequest(t, srv.Handler(), http.MethodPut, "/api/ratings", map[string]any{
			"songTitle":  "Hurt",
			"artistName": "Johnny Cash",
			"stars":      stars,
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("stars=%d: status = %d, want %d", stars, rec.Code, http.StatusBadRequest)
		}
	}

	rec = doRequest(t, srv.Handler(), http.MethodGet, "/api/ratings", nil)
	ratings := decodeJSON[[]docstore.Rating](t, rec)
	if len(ratings) != 1 {
		t.Errorf("len(ratings) = %d, want 1", len(ratings))
	}
}

func TestPinsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/pins", map[string]any{
		"songTitle":  "Pink Moon",
		"artistName": "Nick Drake",
		"albumTitle": "Pink Moon",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	pin := decodeJSON[docstore.Pin](t, rec)
	if pin.ID == "" {
		t.Fatal("pin has no ID")
	}

	rec = doRequest(t, srv.Handler(), http.MethodGet, "/api/pins", nil)
	pins := decodeJSON[[]docstore.Pin](t, rec)
	if len(pins) != 1 {
		t.Errorf("len(pins) = %d, want 1", len(pins))
	}

	rec = doRequest(t, srv.Handler(), http.MethodDelete, "/api/pins/"+pin.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	rec = doRequest(t, srv.Handler(), http.MethodDelete, "/api/pins/"+pin.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if got := errorCode(t, rec); got != ErrCodeNotFound {
		t.Errorf("error code = %q, want %q", got, ErrCodeNotFound)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeJSON[healthResponse](t, rec)
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
}

func TestHealthzDegraded(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *ServerConfig) {
		cfg.Checks = map[string]health.Checker{
			"redis":    stubChecker{err: errors.New("connection refused")},
			"postgres": stubChecker{},
		}
	})

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	resp := decodeJSON[healthResponse](t, rec)
	if resp.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", resp.Status)
	}
	if resp.Checks["postgres"] != "ok" {
		t.Errorf("postgres = %q, want ok", resp.Checks["postgres"])
	}
	if resp.Checks["redis"] == "ok" {
		t.Error("redis reported ok, want an error message")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	doRequest(t, srv.Handler(), http.MethodPost, "/api/history", map[string]any{
		"songTitle":       "Pink Moon",
		"artistName":      "Nick Drake",
		"durationSeconds": 125,
	})

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "tunelog_sessions_recorded_total 1") {
		t.Error("metrics output missing recorded-session count")
	}
	if !strings.Contains(body, `tunelog_http_requests_total{method="POST",path="/api/history",status="201"} 1`) {
		t.Error("metrics output missing HTTP request count")
	}
}

func TestAuthEndpoints(t *testing.T) {
	cache := auth.NewTokenCache(filepath.Join(t.TempDir(), "token.json"))
	authenticator := auth.New("client-id", "client-secret", "http://127.0.0.1:8080/auth/callback", cache)

	srv, _ := newTestServer(t, func(cfg *ServerConfig) {
		cfg.Auth = authenticator
	})

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/auth/login", nil)
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("login status = %d, want %d", rec.Code, http.StatusTemporaryRedirect)
	}
	location := rec.Header().Get("Location")
	if !strings.Contains(location, "accounts.spotify.com") {
		t.Errorf("Location = %q, want a Spotify consent URL", location)
	}

	var stateCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == oauthStateCookie {
			stateCookie = c
		}
	}
	if stateCookie == nil {
		t.Fatal("no state cookie set")
	}
	if !strings.Contains(location, stateCookie.Value) {
		t.Error("consent URL does not carry the state cookie value")
	}

	// Callback without the state cookie.
	rec = doRequest(t, srv.Handler(), http.MethodGet, "/auth/callback?state=abc&code=xyz", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("callback status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	// Callback with a mismatched state.
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?state=tampered&code=xyz", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: stateCookie.Value})
	mismatch := httptest.NewRecorder()
	srv.Handler().ServeHTTP(mismatch, req)
	if mismatch.Code != http.StatusBadRequest {
		t.Errorf("mismatched state status = %d, want %d", mismatch.Code, http.StatusBadRequest)
	}

	rec = doRequest(t, srv.Handler(), http.MethodPost, "/auth/logout", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("logout status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuthEndpointsWithoutSpotify(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, tt := range []struct {
		method string
		target string
	}{
		{http.MethodGet, "/auth/login"},
		{http.MethodGet, "/auth/callback"},
		{http.MethodPost, "/auth/logout"},
	} {
		rec := doRequest(t, srv.Handler(), tt.method, tt.target, nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.target, rec.Code, http.StatusServiceUnavailable)
		}
	}
}

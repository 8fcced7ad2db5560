package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names as constants for consistency.
const (
	MetricHTTPRequestsTotal         = "tunelog_http_requests_total"
	MetricHTTPRequestDuration       = "tunelog_http_request_duration_seconds"
	MetricSessionsRecorded          = "tunelog_sessions_recorded_total"
	MetricReconcileRuns             = "tunelog_reconcile_runs_total"
	MetricReconcileSessionsAppended = "tunelog_reconcile_sessions_appended_total"
	MetricSearchCacheHits           = "tunelog_search_cache_hits_total"
	MetricSearchCacheMisses         = "tunelog_search_cache_misses_total"
)

// Metrics contains the engine's Prometheus collectors. All operations
// are safe for concurrent use.
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	sessionsRecorded          prometheus.Counter
	reconcileRuns             prometheus.Counter
	reconcileSessionsAppended prometheus.Counter

	searchCacheHits   prometheus.Counter
	searchCacheMisses prometheus.Counter
}

// NewMetrics creates all collectors. They are not registered; call
// Register to attach them to a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricHTTPRequestsTotal,
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPRequestDuration,
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.01, 0.1, 0.5, 1.0, 2.0},
			},
			[]string{"method", "path", "status"},
		),
		sessionsRecorded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricSessionsRecorded,
				Help: "Total number of play sessions recorded through the API",
			},
		),
		reconcileRuns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricReconcileRuns,
				Help: "Total number of provider reconciliation runs",
			},
		),
		reconcileSessionsAppended: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricReconcileSessionsAppended,
				Help: "Total number of sessions synthesized by reconciliation",
			},
		),
		searchCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricSearchCacheHits,
				Help: "Total number of search cache hits",
			},
		),
		searchCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricSearchCacheMisses,
				Help: "Total number of search cache misses",
			},
		),
	}
}

// Register registers all collectors with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.sessionsRecorded,
		m.reconcileRuns,
		m.reconcileSessionsAppended,
		m.searchCacheHits,
		m.searchCacheMisses,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// staticRoutes are served under their own path label. Anything else is
// collapsed by normalizePath to keep label cardinality bounded.
var staticRoutes = map[string]bool{
	"/api/history":       true,
	"/api/sync":          true,
	"/api/search":        true,
	"/api/ratings":       true,
	"/api/pins":          true,
	"/api/activity":      true,
	"/api/stats/songs":   true,
	"/api/stats/artists": true,
	"/api/stats/daily":   true,
	"/api/stats/hourly":  true,
	"/api/stats/summary": true,
	"/api/stats/eras":    true,
	"/auth/login":        true,
	"/auth/callback":     true,
	"/auth/logout":       true,
}

// normalizePath maps dynamic path segments to route patterns, so
// /api/pins/3f1a... records as /api/pins/{id}.
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}
	if strings.HasPrefix(path, "/api/pins/") {
		return "/api/pins/{id}"
	}
	return "other"
}

// Instrument counts and times every request. The health and metrics
// endpoints are excluded.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := newResponseWriter(w)

		next.ServeHTTP(rw, r)

		status := strconv.Itoa(rw.statusCode)
		path := normalizePath(r.URL.Path)
		m.httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

// SessionRecorded increments the recorded-session counter.
func (m *Metrics) SessionRecorded() {
	m.sessionsRecorded.Inc()
}

// ReconcileRun records a completed reconciliation and the number of
// sessions it appended.
func (m *Metrics) ReconcileRun(appended int) {
	m.reconcileRuns.Inc()
	m.reconcileSessionsAppended.Add(float64(appended))
}

// SearchCacheHit increments the search cache hit counter.
func (m *Metrics) SearchCacheHit() {
	m.searchCacheHits.Inc()
}

// SearchCacheMiss increments the search cache miss counter.
func (m *Metrics) SearchCacheMiss() {
	m.searchCacheMisses.Inc()
}

// MetricsHandler serves the registry in Prometheus text format.
func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

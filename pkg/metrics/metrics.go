package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Ingestion metrics
	EventsQueuedTotal   *prometheus.CounterVec
	EventBufferPending  prometheus.Gauge
	EventFlushesTotal   *prometheus.CounterVec
	EventsFlushedTotal  prometheus.Counter
	EventFlushDuration  prometheus.Histogram
	VisitsRecordedTotal *prometheus.CounterVec
	RateLimitedTotal    prometheus.Counter

	// Cache metrics
	CacheLookupsTotal *prometheus.CounterVec
	CacheSweptTotal   prometheus.Counter

	// Feed metrics
	FeedFetchesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "site_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "site_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		EventsQueuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "site_analytics_events_queued_total",
				Help: "Total number of events appended to the event buffer",
			},
			[]string{"type"},
		),
		EventBufferPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "site_analytics_event_buffer_pending",
				Help: "Events waiting in the buffer for the next flush",
			},
		),
		EventFlushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "site_analytics_event_flushes_total",
				Help: "Total number of buffer flush attempts",
			},
			[]string{"trigger", "result"},
		),
		EventsFlushedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "site_analytics_events_flushed_total",
				Help: "Total number of events persisted by flushes",
			},
		),
		EventFlushDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "site_analytics_event_flush_duration_seconds",
				Help:    "Duration of buffer flush transactions",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		VisitsRecordedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "site_analytics_visits_recorded_total",
				Help: "Total number of page views written",
			},
			[]string{"result"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "site_analytics_rate_limited_total",
				Help: "Collect requests rejected by the rate limiter",
			},
		),

		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "site_cache_lookups_total",
				Help: "Cache adapter outcomes",
			},
			[]string{"result"},
		),
		CacheSweptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "site_cache_swept_entries_total",
				Help: "Expired cache entries removed by the janitor",
			},
		),

		FeedFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "site_feed_fetches_total",
				Help: "Feed requests by feed and freshness",
			},
			[]string{"feed", "freshness"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.EventsQueuedTotal,
		m.EventBufferPending,
		m.EventFlushesTotal,
		m.EventsFlushedTotal,
		m.EventFlushDuration,
		m.VisitsRecordedTotal,
		m.RateLimitedTotal,
		m.CacheLookupsTotal,
		m.CacheSweptTotal,
		m.FeedFetchesTotal,
	)

	return m
}

// NewTestMetrics returns metrics registered on a throwaway registry
func NewTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware instruments requests. Routes are labelled by their chi
// pattern to keep label cardinality bounded.
func HTTPMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler serves the registry in the Prometheus exposition format
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

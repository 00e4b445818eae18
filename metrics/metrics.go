// Package metrics exposes Prometheus collectors for the royalty client.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "royalties_sync_runs_total",
			Help: "Total number of record loads",
		},
		[]string{"status"},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "royalties_sync_duration_seconds",
			Help:    "Duration of record loads",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
	)

	SyncRecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "royalties_sync_records_skipped_total",
			Help: "Records left out of a load",
		},
		[]string{"reason"},
	)

	RecordsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "royalties_records_loaded",
			Help: "Number of records in the last successful load",
		},
	)

	WritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "royalties_writes_total",
			Help: "Contract write operations",
		},
		[]string{"op", "status"},
	)

	WriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "royalties_write_duration_seconds",
			Help:    "Duration of contract write operations",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"op"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "royalties_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "royalties_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Label values.
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusUnavailable = "unavailable"
	StatusRejected    = "rejected"

	SkipFetchError = "fetch_error"
	SkipEmpty      = "empty"
	SkipInvalid    = "invalid"

	OpContribute = "contribute"
	OpClaim      = "claim"
	OpReconcile  = "reconcile"
)

// Middleware records request counts and latency by route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// Package metrics exposes Prometheus collectors for the graph crawler.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	apiRequestsTotal           *prometheus.CounterVec
	apiRequestDurationSeconds  *prometheus.HistogramVec
	apiRetriesTotal            prometheus.Counter
	apiDegradedSectionsTotal   *prometheus.CounterVec
	crawlerNodesTotal          *prometheus.CounterVec
	crawlerSnapshotsTotal      *prometheus.CounterVec
	crawlerRateLimitDelays     prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		apiRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphcrawler_api_requests_total",
				Help: "Total channels.list calls, labeled by lookup mode and outcome.",
			},
			[]string{"mode", "outcome"},
		)

		apiRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graphcrawler_api_request_duration_seconds",
				Help:    "Histogram of channels.list latencies including retries, labeled by lookup mode.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"mode"},
		)

		apiRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "graphcrawler_api_retries_total",
				Help: "Total retried channels.list attempts.",
			},
		)

		apiDegradedSectionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphcrawler_api_degraded_sections_total",
				Help: "Response sections that were missing or unparsable, labeled by section.",
			},
			[]string{"section"},
		)

		crawlerNodesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphcrawler_nodes_total",
				Help: "Total nodes processed, labeled by terminal state.",
			},
			[]string{"state"},
		)

		crawlerSnapshotsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphcrawler_snapshots_total",
				Help: "Total snapshot writes, labeled by kind and status.",
			},
			[]string{"kind", "status"},
		)

		crawlerRateLimitDelays = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "graphcrawler_rate_limit_delays_seconds",
				Help:    "Histogram of quota pacing wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAPIRequest records one channels.list call.
func ObserveAPIRequest(mode, outcome string, duration time.Duration) {
	Init()
	apiRequestsTotal.WithLabelValues(mode, outcome).Inc()
	apiRequestDurationSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveAPIRetry counts a retried attempt.
func ObserveAPIRetry() {
	Init()
	apiRetriesTotal.Inc()
}

// ObserveDegradedSection counts a missing or unparsable response section.
func ObserveDegradedSection(section string) {
	Init()
	apiDegradedSectionsTotal.WithLabelValues(section).Inc()
}

// ObserveNode increments the node counter for the given terminal state.
func ObserveNode(state string) {
	Init()
	crawlerNodesTotal.WithLabelValues(state).Inc()
}

// ObserveSnapshot records a checkpoint or final write.
func ObserveSnapshot(kind string, err error) {
	Init()
	status := "success"
	if err != nil {
		status = "error"
	}
	crawlerSnapshotsTotal.WithLabelValues(kind, status).Inc()
}

// ObserveRateLimitDelay records the duration of a quota pacing wait.
func ObserveRateLimitDelay(duration time.Duration) {
	Init()
	crawlerRateLimitDelays.Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

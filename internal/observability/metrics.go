// Package observability exposes the process's Prometheus metrics. All
// collectors are package-level and registered on the default registry so
// any component can record without carrying a handle.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pipelineRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edgar",
		Subsystem: "pipeline",
		Name:      "requests_total",
		Help:      "Pipeline requests by outcome (ok or failure kind).",
	}, []string{"outcome"})

	pipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "edgar",
		Subsystem: "pipeline",
		Name:      "request_duration_seconds",
		Help:      "End-to-end pipeline request duration.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"outcome"})

	docCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edgar",
		Subsystem: "cache",
		Name:      "doc_lookups_total",
		Help:      "Facts-document cache lookups by result.",
	}, []string{"result"})

	fetchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edgar",
		Subsystem: "fetch",
		Name:      "attempts_total",
		Help:      "Upstream HTTP attempts by result (ok, retryable, fatal, rejected).",
	}, []string{"result"})

	breakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "edgar",
		Subsystem: "breaker",
		Name:      "state",
		Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open).",
	})

	breakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edgar",
		Subsystem: "breaker",
		Name:      "transitions_total",
		Help:      "Circuit breaker state transitions.",
	}, []string{"to"})

	rateLimiterWaits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "edgar",
		Subsystem: "ratelimit",
		Name:      "waits_total",
		Help:      "Acquisitions that had to wait for a token.",
	})
)

// RecordPipelineRequest records one finished pipeline request.
func RecordPipelineRequest(outcome string, elapsed time.Duration) {
	pipelineRequests.WithLabelValues(outcome).Inc()
	pipelineDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// RecordDocCache records a facts-document cache lookup.
func RecordDocCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	docCacheLookups.WithLabelValues(result).Inc()
}

// RecordFetchAttempt records one upstream HTTP attempt outcome.
func RecordFetchAttempt(result string) {
	fetchAttempts.WithLabelValues(result).Inc()
}

// RecordBreakerState mirrors the breaker's current state into the gauge.
func RecordBreakerState(state int) {
	breakerState.Set(float64(state))
}

// RecordBreakerTransition counts a state change.
func RecordBreakerTransition(to string) {
	breakerTransitions.WithLabelValues(to).Inc()
}

// RecordRateLimiterWait counts a throttled acquisition.
func RecordRateLimiterWait() {
	rateLimiterWaits.Inc()
}

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "aula"

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
		[]string{"limiter"},
	)
)

// Generation metrics
var (
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total number of generation requests by outcome",
		},
		[]string{"type", "outcome"}, // generated, limit_exceeded, failed
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "End-to-end generation latency including retries",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"type"},
	)

	GenerationAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_attempts_total",
			Help:      "Total number of completion attempts by result kind",
		},
		[]string{"kind"}, // "ok" or an error kind
	)

	GenerationRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_retries_total",
			Help:      "Total number of retried completion attempts",
		},
	)

	RefinementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refinements_total",
			Help:      "Total number of refinement requests",
		},
		[]string{"action", "outcome"},
	)

	AIAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_api_calls_total",
			Help:      "Total number of AI API calls",
		},
		[]string{"provider", "status"},
	)

	// Aggregate totals, no user label to avoid cardinality
	AITokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_tokens_total",
			Help:      "Total AI tokens consumed",
		},
		[]string{"type"}, // "input" or "output"
	)
)

// Quota metrics
var (
	QuotaDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_decisions_total",
			Help:      "Total number of quota gate decisions",
		},
		[]string{"category", "decision"}, // allowed, denied
	)

	QuotaLedgerErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_ledger_errors_total",
			Help:      "Total number of usage ledger faults",
		},
		[]string{"op"}, // read, write
	)

	UsageRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_recorded_total",
			Help:      "Total number of usage records written",
		},
		[]string{"category"},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Total number of file uploads by outcome",
		},
		[]string{"outcome"},
	)
)

// Export metrics
var (
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Total number of document exports by format and outcome",
		},
		[]string{"format", "outcome"}, // rendered, forbidden, invalid, unavailable, failed
	)

	ExportBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_size_bytes",
			Help:      "Size of rendered exports in bytes",
			Buckets:   prometheus.ExponentialBuckets(4096, 4, 7), // 4KB to 16MB
		},
		[]string{"format"},
	)
)

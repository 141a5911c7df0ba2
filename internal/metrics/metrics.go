package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cratebuddy_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cratebuddy_recommend_requests_total",
			Help: "Recommendation requests by outcome",
		},
		[]string{"outcome"}, // "success", "empty", "subject_not_found", ...
	)

	ResultCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cratebuddy_result_cache_hits_total",
			Help: "Recommendation lists served from the result cache",
		},
	)

	ResultCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cratebuddy_result_cache_misses_total",
			Help: "Recommendation lists computed because the result cache missed",
		},
	)

	UpstreamFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cratebuddy_upstream_fetches_total",
			Help: "Bandcamp page fetches by page kind and result",
		},
		[]string{"kind", "result"}, // kind: collection, tralbum; result: cached, fetched, error
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cratebuddy_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	ScoreAuditFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cratebuddy_score_audit_failures_total",
			Help: "Scored lists rejected because total_score did not match the weighted breakdown",
		},
	)
)

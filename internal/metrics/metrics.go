package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capso_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "capso_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capso_generations_total",
			Help: "Total number of audio generation requests by outcome.",
		},
		[]string{"status"},
	)

	PipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "capso_pipeline_stage_duration_seconds",
			Help:    "Duration of individual generation pipeline stages.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	PostProcessDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capso_postprocess_degraded_total",
			Help: "Optional audio transforms that fell back to the unmodified input.",
		},
		[]string{"transform"},
	)

	TierLimitRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "capso_tier_limit_rejections_total",
			Help: "Generation requests rejected by the usage/tier gate.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		GenerationsTotal,
		PipelineStageDuration,
		PostProcessDegradedTotal,
		TierLimitRejectionsTotal,
	)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = []float64{
	0.001, // 1ms
	0.005, // 5ms
	0.01,  // 10ms
	0.025, // 25ms
	0.05,  // 50ms
	0.1,   // 100ms
	0.25,  // 250ms
	0.5,   // 500ms
	1.0,   // 1s
	2.5,   // 2.5s
	5.0,   // 5s
	10.0,  // 10s
}

var (
	// RedeemDuration tracks the latency of deal redemption
	RedeemDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pinnity_redeem_duration_seconds",
			Help:    "Duration of deal redemption requests in seconds",
			Buckets: latencyBuckets,
		},
		[]string{"result"}, // success, limit_reached, sold_out, not_redeemable, failed
	)

	// ModerationTransitions counts applied status changes
	ModerationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinnity_moderation_transitions_total",
			Help: "Status transitions applied to deals and businesses",
		},
		[]string{"entity", "to"},
	)

	// CompressionAttempts tracks how many JPEG encodes an upload needed
	CompressionAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pinnity_image_compression_attempts",
			Help:    "JPEG encode attempts per processed image",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	// HTTPRequestDuration tracks REST latency by route
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pinnity_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: latencyBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// RepairRowsFixed counts rows rewritten by the repair jobs
	RepairRowsFixed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinnity_repair_rows_fixed_total",
			Help: "Rows rewritten by data repair jobs",
		},
		[]string{"job"},
	)
)

// RecordRedeemDuration records the duration of a redemption request
func RecordRedeemDuration(result string, duration float64) {
	RedeemDuration.WithLabelValues(result).Observe(duration)
}

// RecordTransition counts one status change
func RecordTransition(entity, to string) {
	ModerationTransitions.WithLabelValues(entity, to).Inc()
}

// RecordCompressionAttempts records the encode count of one image
func RecordCompressionAttempts(attempts int) {
	CompressionAttempts.Observe(float64(attempts))
}

// RecordHTTPRequest records one REST request
func RecordHTTPRequest(method, route, status string, duration float64) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration)
}

// RecordRepair adds n fixed rows for a job
func RecordRepair(job string, n int64) {
	RepairRowsFixed.WithLabelValues(job).Add(float64(n))
}

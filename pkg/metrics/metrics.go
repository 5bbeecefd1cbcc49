package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatlens_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatlens_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// Analysis metrics
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatlens_analyses_total",
			Help: "Total analysis operations by outcome category",
		},
		[]string{"operation", "outcome"},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatlens_analysis_duration_seconds",
			Help:    "Analysis duration including log loading",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	MessagesAnalyzed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatlens_messages_analyzed_total",
			Help: "Total messages fed through full analyses",
		},
	)

	ResourceGuardRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatlens_resource_guard_rejections_total",
			Help: "Token scans refused for missing compute passcode",
		},
	)

	// Retention metrics
	RetentionRemovals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatlens_retention_removals_total",
			Help: "Directories removed by the retention sweeper",
		},
		[]string{"kind"}, // "upload" or "chunk"
	)

	RetentionSweepErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatlens_retention_sweep_errors_total",
			Help: "Retention removals that failed",
		},
	)
)

// Outcome maps an error category to a metric label value.
func Outcome(category string) string {
	if category == "" {
		return "ok"
	}
	return category
}

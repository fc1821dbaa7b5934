// Package metrics exposes the Prometheus metrics of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes.
const (
	Recorded  = "recorded"
	Invalid   = "invalid"
	Rejected  = "rejected"
	Failed    = "failed"
	Throttled = "throttled"
)

var (
	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "survey_submissions_total",
			Help: "Survey submissions, by outcome",
		},
		[]string{"outcome"},
	)

	ExportedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "survey_exported_rows_total",
			Help: "Response rows written by exports",
		},
		[]string{"format"},
	)

	ExportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "survey_export_duration_seconds",
			Help:    "Duration of response exports",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
		[]string{"format"},
	)

	Reorders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "survey_reorders_total",
			Help: "Question and section moves, by kind and result",
		},
		[]string{"kind", "result"},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}

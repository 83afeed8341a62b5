// Package metrics provides Prometheus metrics for the digest pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts finished pipeline runs by outcome.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsdigest",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs",
		},
		[]string{"status"},
	)

	// StageDuration measures how long each pipeline stage takes.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "newsdigest",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// ValidationsTotal counts item validations by the path that produced them.
	ValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsdigest",
			Name:      "validations_total",
			Help:      "Total number of item validations",
		},
		[]string{"path"},
	)

	// CorroborationLookups counts corroboration searches by outcome.
	CorroborationLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsdigest",
			Name:      "corroboration_lookups_total",
			Help:      "Total number of corroboration lookups",
		},
		[]string{"outcome"},
	)

	// DigestItems observes how many items each digest carries.
	DigestItems = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "newsdigest",
			Name:      "digest_items",
			Help:      "Distribution of digest sizes",
			Buckets:   []float64{0, 1, 3, 5, 10, 15},
		},
	)

	// ApprovalDecisions counts digest status transitions.
	ApprovalDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsdigest",
			Name:      "approval_decisions_total",
			Help:      "Total number of digest status transitions",
		},
		[]string{"status"},
	)
)

// RecordRun records a finished run.
func RecordRun(status string) {
	RunsTotal.WithLabelValues(status).Inc()
}

// RecordStage records a stage duration in seconds.
func RecordStage(stage string, seconds float64) {
	StageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordValidation records one validation outcome.
func RecordValidation(path string) {
	ValidationsTotal.WithLabelValues(path).Inc()
}

// RecordLookup records one corroboration lookup outcome.
func RecordLookup(outcome string) {
	CorroborationLookups.WithLabelValues(outcome).Inc()
}

// RecordDigest records the size of a built digest.
func RecordDigest(items int) {
	DigestItems.Observe(float64(items))
}

// RecordDecision records a digest status transition.
func RecordDecision(status string) {
	ApprovalDecisions.WithLabelValues(status).Inc()
}

package prometheus

import (
	"time"

	"github.com/marmos91/mozaichub/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// deletionMetrics is the Prometheus implementation of metrics.DeletionMetrics.
type deletionMetrics struct {
	removalsTotal  *prometheus.CounterVec
	sweepDuration  prometheus.Histogram
	sweepDueFiles  prometheus.Counter
	sweepFailures  prometheus.Counter
	orphansDeleted prometheus.Counter
	orphansFailed  prometheus.Counter
}

// NewDeletionMetrics creates a Prometheus-backed DeletionMetrics.
//
// Returns a no-op implementation if metrics are not enabled.
func NewDeletionMetrics() metrics.DeletionMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopDeletionMetrics()
	}

	reg := metrics.GetRegistry()

	return &deletionMetrics{
		removalsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mozaichub_artifact_removals_total",
				Help: "Artifact removals by outcome",
			},
			[]string{"outcome"},
		),
		sweepDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "mozaichub_deletion_sweep_duration_seconds",
				Help: "Duration of deferred deletion sweeps",
				Buckets: []float64{
					0.01, // 10ms
					0.1,  // 100ms
					1,    // 1s
					10,   // 10s
					60,   // 1m
					600,  // 10m
				},
			},
		),
		sweepDueFiles: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "mozaichub_deletion_sweep_due_files_total",
				Help: "Files found due for deletion by sweeps",
			},
		),
		sweepFailures: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "mozaichub_deletion_sweep_failures_total",
				Help: "File records the sweep failed to remove",
			},
		),
		orphansDeleted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "mozaichub_orphan_artifacts_deleted_total",
				Help: "Unreferenced artifacts deleted by orphan collection",
			},
		),
		orphansFailed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "mozaichub_orphan_artifacts_failed_total",
				Help: "Unreferenced artifacts orphan collection failed to delete",
			},
		),
	}
}

func (m *deletionMetrics) RecordRemoval(outcome string) {
	m.removalsTotal.WithLabelValues(outcome).Inc()
}

func (m *deletionMetrics) RecordSweep(duration time.Duration, due, failed int) {
	m.sweepDuration.Observe(duration.Seconds())
	m.sweepDueFiles.Add(float64(due))
	m.sweepFailures.Add(float64(failed))
}

func (m *deletionMetrics) RecordOrphans(deleted, failed int) {
	m.orphansDeleted.Add(float64(deleted))
	m.orphansFailed.Add(float64(failed))
}

package metrics

import (
	"time"

	"mercator-hq/chaoslab/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RetentionMetrics tracks retention cleanups.
//
// Metrics:
//   - chaoslab_retention_deleted_objects_total: objects deleted by job
//   - chaoslab_retention_freed_bytes_total: bytes freed by job
//   - chaoslab_retention_errors_total: per-object delete failures by job
//   - chaoslab_retention_cleanup_duration_seconds: cleanup wall time by job
//   - chaoslab_retention_runs_total: scheduled runs by job and result
type RetentionMetrics struct {
	deletedTotal    *prometheus.CounterVec
	freedBytesTotal *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	runsTotal       *prometheus.CounterVec
}

// NewRetentionMetrics creates and registers retention metrics.
func NewRetentionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RetentionMetrics {
	rm := &RetentionMetrics{
		deletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "retention_deleted_objects_total",
				Help:      "Total number of objects deleted by retention",
			},
			[]string{"job"},
		),

		freedBytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "retention_freed_bytes_total",
				Help:      "Total bytes freed by retention",
			},
			[]string{"job"},
		),

		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "retention_errors_total",
				Help:      "Total number of per-object retention failures",
			},
			[]string{"job"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "retention_cleanup_duration_seconds",
				Help:      "Retention cleanup duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8), // 10ms to ~160s
			},
			[]string{"job"},
		),

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "retention_runs_total",
				Help:      "Total number of scheduled retention runs",
			},
			[]string{"job", "result"},
		),
	}

	registry.MustRegister(
		rm.deletedTotal,
		rm.freedBytesTotal,
		rm.errorsTotal,
		rm.duration,
		rm.runsTotal,
	)

	return rm
}

// RecordCleanup records one cleanup result.
func (rm *RetentionMetrics) RecordCleanup(job string, deleted int, freed int64, errors int, duration time.Duration) {
	rm.deletedTotal.WithLabelValues(job).Add(float64(deleted))
	rm.freedBytesTotal.WithLabelValues(job).Add(float64(freed))
	rm.errorsTotal.WithLabelValues(job).Add(float64(errors))
	rm.duration.WithLabelValues(job).Observe(duration.Seconds())
}

// RecordRun counts one scheduled run.
func (rm *RetentionMetrics) RecordRun(job, result string) {
	rm.runsTotal.WithLabelValues(job, result).Inc()
}

package metrics

import (
	"mercator-hq/chaoslab/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// FlagMetrics tracks calls the orchestrator makes to its collaborators.
//
// Metrics:
//   - chaoslab_flag_operations_total: flag enable/disable calls by result
//   - chaoslab_annotations_total: annotation writes by kind and result
type FlagMetrics struct {
	operationsTotal  *prometheus.CounterVec
	annotationsTotal *prometheus.CounterVec
}

// NewFlagMetrics creates and registers flag and annotation metrics.
func NewFlagMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *FlagMetrics {
	fm := &FlagMetrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "flag_operations_total",
				Help:      "Total number of feature flag operations",
			},
			[]string{"operation", "result"},
		),

		annotationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "annotations_total",
				Help:      "Total number of session annotations written",
			},
			[]string{"kind", "result"},
		),
	}

	registry.MustRegister(fm.operationsTotal, fm.annotationsTotal)

	return fm
}

// RecordOperation counts one flag controller call.
func (fm *FlagMetrics) RecordOperation(op, result string) {
	fm.operationsTotal.WithLabelValues(op, result).Inc()
}

// RecordAnnotation counts one annotation write.
func (fm *FlagMetrics) RecordAnnotation(kind, result string) {
	fm.annotationsTotal.WithLabelValues(kind, result).Inc()
}

package metrics

import (
	"mercator-hq/chaoslab/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// StorageMetrics publishes the most recent usage sample per root prefix.
// Values are approximate when the sample hit its cap.
//
// Metrics:
//   - chaoslab_storage_sampled_objects: objects seen in the last sample
//   - chaoslab_storage_sampled_bytes: bytes seen in the last sample
//   - chaoslab_storage_sample_truncated: 1 when the sample hit its cap
type StorageMetrics struct {
	objects   *prometheus.GaugeVec
	bytes     *prometheus.GaugeVec
	truncated *prometheus.GaugeVec
}

// NewStorageMetrics creates and registers storage gauges.
func NewStorageMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *StorageMetrics {
	sm := &StorageMetrics{
		objects: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "storage_sampled_objects",
				Help:      "Objects counted in the latest storage usage sample",
			},
			[]string{"prefix"},
		),

		bytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "storage_sampled_bytes",
				Help:      "Bytes counted in the latest storage usage sample",
			},
			[]string{"prefix"},
		),

		truncated: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "storage_sample_truncated",
				Help:      "1 if the latest storage usage sample hit its cap",
			},
			[]string{"prefix"},
		),
	}

	registry.MustRegister(sm.objects, sm.bytes, sm.truncated)

	return sm
}

// Update replaces the sample for prefix.
func (sm *StorageMetrics) Update(prefix string, objects int, bytes int64, sampled bool) {
	sm.objects.WithLabelValues(prefix).Set(float64(objects))
	sm.bytes.WithLabelValues(prefix).Set(float64(bytes))

	truncated := 0.0
	if sampled {
		truncated = 1
	}
	sm.truncated.WithLabelValues(prefix).Set(truncated)
}

package metrics

import (
	"time"

	"mercator-hq/chaoslab/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetrics tracks diagnostic session lifecycles.
//
// Metrics:
//   - chaoslab_sessions_started_total: sessions started by flag
//   - chaoslab_sessions_finished_total: sessions finished by flag and outcome
//   - chaoslab_sessions_active: session tasks currently running
//   - chaoslab_session_duration_seconds: start to end time by outcome
type SessionMetrics struct {
	startedTotal  *prometheus.CounterVec
	finishedTotal *prometheus.CounterVec
	active        prometheus.Gauge
	duration      *prometheus.HistogramVec
}

// NewSessionMetrics creates and registers session metrics.
func NewSessionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *SessionMetrics {
	sm := &SessionMetrics{
		startedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sessions_started_total",
				Help:      "Total number of diagnostic sessions started",
			},
			[]string{"flag"},
		),

		finishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sessions_finished_total",
				Help:      "Total number of diagnostic sessions finished, by outcome",
			},
			[]string{"flag", "outcome"},
		),

		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sessions_active",
				Help:      "Number of diagnostic session tasks currently running",
			},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "session_duration_seconds",
				Help:      "Diagnostic session duration in seconds",
				Buckets:   cfg.SessionDurationBuckets,
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		sm.startedTotal,
		sm.finishedTotal,
		sm.active,
		sm.duration,
	)

	return sm
}

// RecordStarted counts a session start.
func (sm *SessionMetrics) RecordStarted(flag string) {
	sm.startedTotal.WithLabelValues(flag).Inc()
	sm.active.Inc()
}

// RecordFinished records a session outcome and its duration.
func (sm *SessionMetrics) RecordFinished(flag, outcome string, duration time.Duration) {
	sm.finishedTotal.WithLabelValues(flag, outcome).Inc()
	sm.duration.WithLabelValues(outcome).Observe(duration.Seconds())
}

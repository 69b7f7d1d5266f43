package metrics

import (
	"sync"
	"time"

	"mercator-hq/chaoslab/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// OverflowLabel replaces label values rejected by the cardinality limiter.
const OverflowLabel = "other"

// Collector owns every chaoslab metric and the registry they live on.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	sessionMetrics   *SessionMetrics
	flagMetrics      *FlagMetrics
	retentionMetrics *RetentionMetrics
	storageMetrics   *StorageMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a collector and registers its metrics. If registry is
// nil a fresh one is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "chaoslab"
	}
	if len(cfg.SessionDurationBuckets) == 0 {
		// Sessions run for seconds to tens of minutes.
		cfg.SessionDurationBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800}
	}
	if cfg.MaxFlagCardinality <= 0 {
		cfg.MaxFlagCardinality = 100
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(cfg.MaxFlagCardinality),
	}

	c.sessionMetrics = NewSessionMetrics(cfg, registry)
	c.flagMetrics = NewFlagMetrics(cfg, registry)
	c.retentionMetrics = NewRetentionMetrics(cfg, registry)
	c.storageMetrics = NewStorageMetrics(cfg, registry)

	return c
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

func (c *Collector) flagLabel(flag string) string {
	if !c.cardinalityLimiter.Allow(flag) {
		return OverflowLabel
	}
	return flag
}

// RecordSessionStarted counts a started session and bumps the active gauge.
func (c *Collector) RecordSessionStarted(flag string) {
	if !c.enabled() {
		return
	}
	c.sessionMetrics.RecordStarted(c.flagLabel(flag))
}

// RecordSessionEnded decrements the active gauge when a session task exits.
func (c *Collector) RecordSessionEnded() {
	if !c.enabled() {
		return
	}
	c.sessionMetrics.active.Dec()
}

// RecordSessionFinished records a session outcome.
//
// Parameters:
//   - flag: fault flag the session toggled
//   - outcome: "completed", "failed" or "stopped"
//   - duration: StartTime to EndTime
func (c *Collector) RecordSessionFinished(flag, outcome string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.sessionMetrics.RecordFinished(c.flagLabel(flag), outcome, duration)
}

// RecordAnnotation records one annotation write. kind is the marker name,
// e.g. "flag_enabled" or "checkpoint".
func (c *Collector) RecordAnnotation(kind string, err error) {
	if !c.enabled() {
		return
	}
	c.flagMetrics.RecordAnnotation(kind, resultLabel(err))
}

// RecordFlagOperation records one flag controller call ("enable" or "disable").
func (c *Collector) RecordFlagOperation(op string, err error) {
	if !c.enabled() {
		return
	}
	c.flagMetrics.RecordOperation(op, resultLabel(err))
}

// RecordCleanup records the outcome of one retention cleanup.
//
// Parameters:
//   - job: "continuous" or "sessions"
//   - deleted: objects removed
//   - freed: bytes removed
//   - errors: per-object failures
//   - duration: wall time of the cleanup
func (c *Collector) RecordCleanup(job string, deleted int, freed int64, errors int, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.retentionMetrics.RecordCleanup(job, deleted, freed, errors, duration)
}

// RecordScheduledRun counts a cron-triggered retention run.
func (c *Collector) RecordScheduledRun(job, result string) {
	if !c.enabled() {
		return
	}
	c.retentionMetrics.RecordRun(job, result)
}

// UpdateStorageSample publishes the sampled usage of one root prefix.
func (c *Collector) UpdateStorageSample(prefix string, objects int, bytes int64, sampled bool) {
	if !c.enabled() {
		return
	}
	c.storageMetrics.Update(prefix, objects, bytes, sampled)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value may be used as a label. Values already seen
// are always allowed; new values are allowed until the limit is reached.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}

package diagnostics

import (
	"time"
)

// Phase is the lifecycle position of a diagnostic session.
type Phase string

const (
	PhaseCreated      Phase = "created"
	PhaseStarted      Phase = "started"
	PhaseFlagEnabled  Phase = "flag_enabled"
	PhaseCapturing    Phase = "capturing"
	PhaseFlagDisabled Phase = "flag_disabled"
	PhaseAnalyzing    Phase = "analyzing"
	PhaseCompleted    Phase = "completed"
	PhaseFailed       Phase = "failed"
)

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// flagMayBeOn reports whether a session in phase p has the fault flag
// turned on.
func (p Phase) flagMayBeOn() bool {
	return p == PhaseFlagEnabled || p == PhaseCapturing
}

// Default timings applied by CreateSession.
const (
	DefaultCaptureIntervalMs int64 = 30000
	DefaultWarmupDelayMs     int64 = 5000
	DefaultTestDurationMs    int64 = 60000
)

// SessionConfig is the input to CreateSession. Timing fields are in
// milliseconds; nil means "use the default", so an explicit zero warmup is
// honored.
type SessionConfig struct {
	FlagName          string         `json:"flag_name" yaml:"flag_name" validate:"required"`
	Name              string         `json:"name,omitempty" yaml:"name"`
	CaptureIntervalMs *int64         `json:"capture_interval_ms,omitempty" yaml:"capture_interval_ms" validate:"omitempty,gt=0"`
	WarmupDelayMs     *int64         `json:"warmup_delay_ms,omitempty" yaml:"warmup_delay_ms" validate:"omitempty,gte=0"`
	TestDurationMs    *int64         `json:"test_duration_ms,omitempty" yaml:"test_duration_ms" validate:"omitempty,gte=0"`
	Metadata          map[string]any `json:"metadata,omitempty" yaml:"metadata"`
}

// Ms returns a pointer to v, for populating SessionConfig timings.
func Ms(v int64) *int64 {
	return &v
}

func msOrDefault(v *int64, def int64) time.Duration {
	if v == nil {
		return time.Duration(def) * time.Millisecond
	}
	return time.Duration(*v) * time.Millisecond
}

// Session is one controlled experiment: a flag toggle correlated with a
// telemetry capture window and the annotations marking it.
type Session struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FlagName string `json:"flag_name"`
	Phase    Phase  `json:"phase"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	CaptureInterval time.Duration `json:"capture_interval"`
	WarmupDelay     time.Duration `json:"warmup_delay"`
	TestDuration    time.Duration `json:"test_duration"`

	// AnnotationIDs only grows.
	AnnotationIDs []string       `json:"annotation_ids"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// Clone returns a deep copy of the session. Metadata values are copied
// shallowly.
func (s *Session) Clone() *Session {
	c := *s
	if s.EndTime != nil {
		t := *s.EndTime
		c.EndTime = &t
	}
	c.AnnotationIDs = make([]string, len(s.AnnotationIDs))
	copy(c.AnnotationIDs, s.AnnotationIDs)
	if s.Metadata != nil {
		c.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

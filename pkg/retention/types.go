package retention

import (
	"time"

	"github.com/go-playground/validator/v10"

	"mercator-hq/chaoslab/pkg/config"
)

var validate = validator.New()

// Policy governs when captured data is deleted.
type Policy struct {
	Continuous ContinuousPolicy
	Sessions   SessionPolicy
}

// ContinuousPolicy governs continuous/ data.
type ContinuousPolicy struct {
	RetentionDays int `validate:"gte=0"`
	Enabled       bool
}

// SessionPolicy governs sessions/ data.
type SessionPolicy struct {
	DefaultRetentionDays int  `validate:"gte=0"`
	MaxRetentionDays     int  `validate:"gtefield=DefaultRetentionDays"`
	ArchiveAfterDays     *int `validate:"omitempty,gte=0"`
	CleanupEnabled       bool
}

// Validate checks the policy's struct constraints.
func (p *Policy) Validate() error {
	return validate.Struct(p)
}

// PolicyFromConfig converts the retention configuration section.
func PolicyFromConfig(cfg *config.RetentionConfig) Policy {
	p := Policy{
		Continuous: ContinuousPolicy{
			RetentionDays: cfg.Continuous.RetentionDays,
			Enabled:       cfg.Continuous.Enabled,
		},
		Sessions: SessionPolicy{
			DefaultRetentionDays: cfg.Sessions.DefaultRetentionDays,
			MaxRetentionDays:     cfg.Sessions.MaxRetentionDays,
			CleanupEnabled:       cfg.Sessions.CleanupEnabled,
		},
	}
	if cfg.Sessions.ArchiveAfterDays != nil {
		days := *cfg.Sessions.ArchiveAfterDays
		p.Sessions.ArchiveAfterDays = &days
	}
	return p
}

// CleanupResult is the outcome of one cleanup. It is always returned, even
// when individual deletes fail.
type CleanupResult struct {
	DeletedObjects  int           `json:"deleted_objects"`
	FreedSpaceBytes int64         `json:"freed_space_bytes"`
	ProcessedPaths  []string      `json:"processed_paths"`
	Errors          []string      `json:"errors"`
	Duration        time.Duration `json:"-"`
}

// DurationMs returns Duration in milliseconds.
func (r *CleanupResult) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// merge adds other's counts and lists to r.
func (r *CleanupResult) merge(other *CleanupResult) {
	r.DeletedObjects += other.DeletedObjects
	r.FreedSpaceBytes += other.FreedSpaceBytes
	r.ProcessedPaths = append(r.ProcessedPaths, other.ProcessedPaths...)
	r.Errors = append(r.Errors, other.Errors...)
}

// PrefixUsage is the sampled usage of one root prefix.
type PrefixUsage struct {
	Prefix         string     `json:"prefix"`
	TotalObjects   int        `json:"total_objects"`
	TotalSizeBytes int64      `json:"total_size_bytes"`
	OldestObject   *time.Time `json:"oldest_object,omitempty"`
	NewestObject   *time.Time `json:"newest_object,omitempty"`

	// Sampled is true when the listing stopped at SampleCap, making the
	// figures lower bounds.
	Sampled   bool `json:"sampled"`
	SampleCap int  `json:"sample_cap"`
}

// StorageMetrics is an approximate usage report built from bounded samples.
type StorageMetrics struct {
	Continuous PrefixUsage `json:"continuous"`
	Sessions   PrefixUsage `json:"sessions"`

	// ActiveSessions and CompletedSessions count session descriptors seen
	// in the sessions sample.
	ActiveSessions    int `json:"active_sessions"`
	CompletedSessions int `json:"completed_sessions"`

	SampledAt time.Time `json:"sampled_at"`
}

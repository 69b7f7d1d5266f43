package config

import "time"

// Config is the root configuration structure for chaoslab.
type Config struct {
	// Diagnostics configures the session orchestrator.
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`

	// Retention configures the retention engine and its schedules.
	Retention RetentionConfig `yaml:"retention"`

	// ObjectStore selects and configures the telemetry blob store.
	ObjectStore ObjectStoreConfig `yaml:"object_store"`

	// Annotations selects and configures the annotation store.
	Annotations AnnotationsConfig `yaml:"annotations"`

	// Flags selects and configures the feature flag controller.
	Flags FlagsConfig `yaml:"flags"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DiagnosticsConfig configures the session orchestrator.
type DiagnosticsConfig struct {
	// AnalysisDelay is the pause between flag disable and completion.
	// Default: 1s
	AnalysisDelay time.Duration `yaml:"analysis_delay"`

	// CallTimeout bounds each flag or annotation call.
	// Default: 10s
	CallTimeout time.Duration `yaml:"call_timeout"`

	// AnnotationCreator labels every session annotation.
	// Default: "diagnostics"
	AnnotationCreator string `yaml:"annotation_creator"`

	// DisableFlagOnFailure turns the flag off when a session fails while it
	// is on.
	DisableFlagOnFailure bool `yaml:"disable_flag_on_failure"`

	// SessionScopedAnnotations restricts a session's annotation query to
	// that session.
	SessionScopedAnnotations bool `yaml:"session_scoped_annotations"`

	// PersistSessions writes sessions/{id}/metadata.json to the object store.
	PersistSessions bool `yaml:"persist_sessions"`
}

// RetentionConfig configures the retention engine.
type RetentionConfig struct {
	// Enabled registers the cron jobs when the service runs.
	Enabled bool `yaml:"enabled"`

	// Continuous governs continuous/{date}/ data.
	Continuous ContinuousRetentionConfig `yaml:"continuous"`

	// Sessions governs sessions/{id}/ data.
	Sessions SessionRetentionConfig `yaml:"sessions"`

	// ContinuousSchedule is the cron spec for continuous cleanup.
	// Default: "@every 24h"
	ContinuousSchedule string `yaml:"continuous_schedule"`

	// SessionSchedule is the cron spec for session cleanup.
	// Default: "@every 24h"
	SessionSchedule string `yaml:"session_schedule"`

	// ListPageCap bounds the objects listed per cleanup pass.
	// Default: 5000
	ListPageCap int `yaml:"list_page_cap"`

	// SampleCap bounds the objects listed per prefix for usage reports.
	// Default: 1000
	SampleCap int `yaml:"sample_cap"`

	// DeleteConcurrency bounds in-flight deletes.
	// Default: 10
	DeleteConcurrency int `yaml:"delete_concurrency"`
}

// ContinuousRetentionConfig governs continuously captured data.
type ContinuousRetentionConfig struct {
	// RetentionDays is the age after which data is deleted.
	// Default: 7
	RetentionDays int `yaml:"retention_days"`

	// Enabled allows the continuous cleanup job to delete.
	Enabled bool `yaml:"enabled"`
}

// SessionRetentionConfig governs session-scoped data.
type SessionRetentionConfig struct {
	// DefaultRetentionDays is informational; cleanup uses MaxRetentionDays.
	// Default: 30
	DefaultRetentionDays int `yaml:"default_retention_days"`

	// MaxRetentionDays is the age after which session data is deleted.
	// Default: 90
	MaxRetentionDays int `yaml:"max_retention_days"`

	// ArchiveAfterDays marks sessions archive-eligible. Unset disables it.
	ArchiveAfterDays *int `yaml:"archive_after_days,omitempty"`

	// CleanupEnabled allows session data to be deleted.
	CleanupEnabled bool `yaml:"cleanup_enabled"`
}

// ObjectStoreConfig selects the telemetry blob store.
type ObjectStoreConfig struct {
	// Backend is "memory", "sqlite" or "file".
	// Default: "file"
	Backend string `yaml:"backend"`

	// SQLite configures the sqlite backend.
	SQLite ObjectSQLiteConfig `yaml:"sqlite"`

	// File configures the file backend.
	File FileStoreConfig `yaml:"file"`
}

// ObjectSQLiteConfig configures the SQLite object store.
type ObjectSQLiteConfig struct {
	// Path is the database file. Default: "data/objects.db"
	Path string `yaml:"path"`

	// BusyTimeout is the lock wait. Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// FileStoreConfig configures the filesystem object store.
type FileStoreConfig struct {
	// Root is the store directory. Default: "data/objects"
	Root string `yaml:"root"`

	// Compress stores objects zstd-compressed.
	Compress bool `yaml:"compress"`
}

// AnnotationsConfig selects the annotation store.
type AnnotationsConfig struct {
	// Backend is "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite configures the sqlite backend.
	SQLite AnnotationSQLiteConfig `yaml:"sqlite"`

	// CreatedBy labels annotations that do not set a creator.
	// Default: "chaoslab"
	CreatedBy string `yaml:"created_by"`

	// DefaultTTL sets ExpiresAt on annotations that do not set one.
	// Zero keeps annotations forever.
	DefaultTTL time.Duration `yaml:"default_ttl"`

	// WriteTimeout bounds each annotation write. Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AnnotationSQLiteConfig configures the SQLite annotation store.
type AnnotationSQLiteConfig struct {
	// Path is the database file. Default: "data/annotations.db"
	Path string `yaml:"path"`

	// MaxOpenConns. Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns. Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables write-ahead logging.
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the lock wait. Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// FlagsConfig selects the flag controller.
type FlagsConfig struct {
	// Backend is "memory" or "file".
	// Default: "file"
	Backend string `yaml:"backend"`

	// File configures the file backend.
	File FlagFileConfig `yaml:"file"`

	// Predefined names boolean flags the memory backend starts with.
	Predefined []string `yaml:"predefined"`
}

// FlagFileConfig configures the flagd-style file controller.
type FlagFileConfig struct {
	// Path is the flag document. Default: "flags.json"
	Path string `yaml:"path"`

	// CreateIfMissing writes an empty document when Path does not exist.
	CreateIfMissing bool `yaml:"create_if_missing"`

	// Watch reloads the document on external edits.
	Watch bool `yaml:"watch"`

	// DebounceInterval coalesces bursts of file events. Default: 100ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error". Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text". Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in records.
	AddSource bool `yaml:"add_source"`

	// Redact scrubs credential-like attributes.
	Redact bool `yaml:"redact"`

	// RedactKeys extends the sensitive key list.
	RedactKeys []string `yaml:"redact_keys"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled turns collection and the HTTP endpoint on.
	Enabled bool `yaml:"enabled"`

	// ListenAddress serves the metrics endpoint. Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// Path is the endpoint path. Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes metric names. Default: "chaoslab"
	Namespace string `yaml:"namespace"`

	// Subsystem is the optional second name segment.
	Subsystem string `yaml:"subsystem"`

	// SessionDurationBuckets are histogram buckets in seconds.
	SessionDurationBuckets []float64 `yaml:"session_duration_buckets"`

	// MaxFlagCardinality caps distinct flag label values. Default: 100
	MaxFlagCardinality int `yaml:"max_flag_cardinality"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled installs a tracer provider.
	Enabled bool `yaml:"enabled"`

	// ServiceName is the service.name resource. Default: "chaoslab"
	ServiceName string `yaml:"service_name"`

	// ServiceVersion is the service.version resource.
	ServiceVersion string `yaml:"service_version"`

	// Exporter is "otlp" or "stdout". Default: "otlp"
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP collector. Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export. Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// Sampler is "always", "never" or "ratio". Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio applies to the ratio sampler. Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`
}

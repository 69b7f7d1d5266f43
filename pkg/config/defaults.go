package config

import "time"

// Default values for configuration fields.
const (
	// Diagnostics defaults
	DefaultAnalysisDelay     = time.Second
	DefaultCallTimeout       = 10 * time.Second
	DefaultAnnotationCreator = "diagnostics"

	// Retention defaults
	DefaultContinuousRetentionDays = 7
	DefaultSessionRetentionDays    = 30
	DefaultSessionMaxRetentionDays = 90
	DefaultRetentionSchedule       = "@every 24h"
	DefaultListPageCap             = 5000
	DefaultSampleCap               = 1000
	DefaultDeleteConcurrency       = 10

	// Object store defaults
	DefaultObjectStoreBackend     = "file"
	DefaultObjectStoreSQLitePath  = "data/objects.db"
	DefaultObjectStoreFileRoot    = "data/objects"
	DefaultObjectStoreBusyTimeout = 5 * time.Second

	// Annotation defaults
	DefaultAnnotationsBackend      = "sqlite"
	DefaultAnnotationsSQLitePath   = "data/annotations.db"
	DefaultAnnotationsMaxOpenConns = 10
	DefaultAnnotationsMaxIdleConns = 5
	DefaultAnnotationsBusyTimeout  = 5 * time.Second
	DefaultAnnotationsCreatedBy    = "chaoslab"
	DefaultAnnotationsWriteTimeout = 5 * time.Second

	// Flag defaults
	DefaultFlagsBackend          = "file"
	DefaultFlagsFilePath         = "flags.json"
	DefaultFlagsDebounceInterval = 100 * time.Millisecond

	// Telemetry defaults
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "json"
	DefaultMetricsListenAddress = "127.0.0.1:9090"
	DefaultMetricsPath          = "/metrics"
	DefaultMetricsNamespace     = "chaoslab"
	DefaultMaxFlagCardinality   = 100
	DefaultTracingServiceName   = "chaoslab"
	DefaultTracingExporter      = "otlp"
	DefaultTracingEndpoint      = "localhost:4317"
	DefaultTracingTimeout       = 10 * time.Second
	DefaultTracingSampler       = "always"
	DefaultTracingSampleRatio   = 1.0
)

// ApplyDefaults fills every unset field with its default. Booleans are left
// as configured. It is idempotent.
func ApplyDefaults(cfg *Config) {
	// Diagnostics
	if cfg.Diagnostics.AnalysisDelay == 0 {
		cfg.Diagnostics.AnalysisDelay = DefaultAnalysisDelay
	}
	if cfg.Diagnostics.CallTimeout == 0 {
		cfg.Diagnostics.CallTimeout = DefaultCallTimeout
	}
	if cfg.Diagnostics.AnnotationCreator == "" {
		cfg.Diagnostics.AnnotationCreator = DefaultAnnotationCreator
	}

	// Retention
	if cfg.Retention.Continuous.RetentionDays == 0 {
		cfg.Retention.Continuous.RetentionDays = DefaultContinuousRetentionDays
	}
	if cfg.Retention.Sessions.DefaultRetentionDays == 0 {
		cfg.Retention.Sessions.DefaultRetentionDays = DefaultSessionRetentionDays
	}
	if cfg.Retention.Sessions.MaxRetentionDays == 0 {
		cfg.Retention.Sessions.MaxRetentionDays = DefaultSessionMaxRetentionDays
	}
	if cfg.Retention.ContinuousSchedule == "" {
		cfg.Retention.ContinuousSchedule = DefaultRetentionSchedule
	}
	if cfg.Retention.SessionSchedule == "" {
		cfg.Retention.SessionSchedule = DefaultRetentionSchedule
	}
	if cfg.Retention.ListPageCap == 0 {
		cfg.Retention.ListPageCap = DefaultListPageCap
	}
	if cfg.Retention.SampleCap == 0 {
		cfg.Retention.SampleCap = DefaultSampleCap
	}
	if cfg.Retention.DeleteConcurrency == 0 {
		cfg.Retention.DeleteConcurrency = DefaultDeleteConcurrency
	}

	// Object store
	if cfg.ObjectStore.Backend == "" {
		cfg.ObjectStore.Backend = DefaultObjectStoreBackend
	}
	if cfg.ObjectStore.SQLite.Path == "" {
		cfg.ObjectStore.SQLite.Path = DefaultObjectStoreSQLitePath
	}
	if cfg.ObjectStore.SQLite.BusyTimeout == 0 {
		cfg.ObjectStore.SQLite.BusyTimeout = DefaultObjectStoreBusyTimeout
	}
	if cfg.ObjectStore.File.Root == "" {
		cfg.ObjectStore.File.Root = DefaultObjectStoreFileRoot
	}

	// Annotations
	if cfg.Annotations.Backend == "" {
		cfg.Annotations.Backend = DefaultAnnotationsBackend
	}
	if cfg.Annotations.SQLite.Path == "" {
		cfg.Annotations.SQLite.Path = DefaultAnnotationsSQLitePath
	}
	if cfg.Annotations.SQLite.MaxOpenConns == 0 {
		cfg.Annotations.SQLite.MaxOpenConns = DefaultAnnotationsMaxOpenConns
	}
	if cfg.Annotations.SQLite.MaxIdleConns == 0 {
		cfg.Annotations.SQLite.MaxIdleConns = DefaultAnnotationsMaxIdleConns
	}
	if cfg.Annotations.SQLite.BusyTimeout == 0 {
		cfg.Annotations.SQLite.BusyTimeout = DefaultAnnotationsBusyTimeout
	}
	if cfg.Annotations.CreatedBy == "" {
		cfg.Annotations.CreatedBy = DefaultAnnotationsCreatedBy
	}
	if cfg.Annotations.WriteTimeout == 0 {
		cfg.Annotations.WriteTimeout = DefaultAnnotationsWriteTimeout
	}

	// Flags
	if cfg.Flags.Backend == "" {
		cfg.Flags.Backend = DefaultFlagsBackend
	}
	if cfg.Flags.File.Path == "" {
		cfg.Flags.File.Path = DefaultFlagsFilePath
	}
	if cfg.Flags.File.DebounceInterval == 0 {
		cfg.Flags.File.DebounceInterval = DefaultFlagsDebounceInterval
	}

	// Logging
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}

	// Metrics
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.MaxFlagCardinality == 0 {
		cfg.Telemetry.Metrics.MaxFlagCardinality = DefaultMaxFlagCardinality
	}

	// Tracing
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Exporter == "" {
		cfg.Telemetry.Tracing.Exporter = DefaultTracingExporter
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
}

// NewDefault returns a configuration with every default applied.
func NewDefault() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "retention.sample_cap").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every FieldError found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// scheduleParser accepts standard five-field specs and descriptors such as
// "@every 24h" or "@daily", matching what the retention scheduler runs.
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate validates the entire configuration. All field errors are
// collected and returned together as a ValidationError.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateDiagnostics(&cfg.Diagnostics)...)
	errs = append(errs, validateRetention(&cfg.Retention)...)
	errs = append(errs, validateObjectStore(&cfg.ObjectStore)...)
	errs = append(errs, validateAnnotations(&cfg.Annotations)...)
	errs = append(errs, validateFlags(&cfg.Flags)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateDiagnostics(cfg *DiagnosticsConfig) []FieldError {
	var errs []FieldError

	if cfg.AnalysisDelay < 0 {
		errs = append(errs, FieldError{Field: "diagnostics.analysis_delay", Message: "must not be negative"})
	}
	if cfg.CallTimeout <= 0 {
		errs = append(errs, FieldError{Field: "diagnostics.call_timeout", Message: "must be positive"})
	}

	return errs
}

func validateRetention(cfg *RetentionConfig) []FieldError {
	var errs []FieldError

	if cfg.Continuous.RetentionDays < 0 {
		errs = append(errs, FieldError{Field: "retention.continuous.retention_days", Message: "must not be negative"})
	}
	if cfg.Sessions.DefaultRetentionDays < 0 {
		errs = append(errs, FieldError{Field: "retention.sessions.default_retention_days", Message: "must not be negative"})
	}
	if cfg.Sessions.MaxRetentionDays < cfg.Sessions.DefaultRetentionDays {
		errs = append(errs, FieldError{
			Field:   "retention.sessions.max_retention_days",
			Message: fmt.Sprintf("must be at least default_retention_days (%d)", cfg.Sessions.DefaultRetentionDays),
		})
	}
	if cfg.Sessions.ArchiveAfterDays != nil && *cfg.Sessions.ArchiveAfterDays < 0 {
		errs = append(errs, FieldError{Field: "retention.sessions.archive_after_days", Message: "must not be negative"})
	}

	for field, spec := range map[string]string{
		"retention.continuous_schedule": cfg.ContinuousSchedule,
		"retention.session_schedule":    cfg.SessionSchedule,
	} {
		if _, err := scheduleParser.Parse(spec); err != nil {
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("invalid cron expression %q: %v", spec, err)})
		}
	}

	if cfg.ListPageCap <= 0 {
		errs = append(errs, FieldError{Field: "retention.list_page_cap", Message: "must be positive"})
	}
	if cfg.SampleCap <= 0 {
		errs = append(errs, FieldError{Field: "retention.sample_cap", Message: "must be positive"})
	}
	if cfg.DeleteConcurrency <= 0 {
		errs = append(errs, FieldError{Field: "retention.delete_concurrency", Message: "must be positive"})
	}

	return errs
}

func validateObjectStore(cfg *ObjectStoreConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "object_store.sqlite.path", Message: "required for sqlite backend"})
		}
	case "file":
		if cfg.File.Root == "" {
			errs = append(errs, FieldError{Field: "object_store.file.root", Message: "required for file backend"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "object_store.backend",
			Message: fmt.Sprintf("unknown backend %q (valid: memory, sqlite, file)", cfg.Backend),
		})
	}

	return errs
}

func validateAnnotations(cfg *AnnotationsConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "annotations.sqlite.path", Message: "required for sqlite backend"})
		}
		if cfg.SQLite.MaxIdleConns > cfg.SQLite.MaxOpenConns {
			errs = append(errs, FieldError{Field: "annotations.sqlite.max_idle_conns", Message: "must not exceed max_open_conns"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "annotations.backend",
			Message: fmt.Sprintf("unknown backend %q (valid: memory, sqlite)", cfg.Backend),
		})
	}

	if cfg.DefaultTTL < 0 {
		errs = append(errs, FieldError{Field: "annotations.default_ttl", Message: "must not be negative"})
	}

	return errs
}

func validateFlags(cfg *FlagsConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "file":
		if cfg.File.Path == "" {
			errs = append(errs, FieldError{Field: "flags.file.path", Message: "required for file backend"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "flags.backend",
			Message: fmt.Sprintf("unknown backend %q (valid: memory, file)", cfg.Backend),
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{Field: "telemetry.logging.level", Message: fmt.Sprintf("unknown level %q", cfg.Logging.Level)})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{Field: "telemetry.logging.format", Message: fmt.Sprintf("unknown format %q", cfg.Logging.Format)})
	}

	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.ListenAddress); err != nil {
			errs = append(errs, FieldError{Field: "telemetry.metrics.listen_address", Message: err.Error()})
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
		}
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Exporter {
		case "otlp":
			if cfg.Tracing.Endpoint == "" {
				errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "required for otlp exporter"})
			}
		case "stdout":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.exporter",
				Message: fmt.Sprintf("unknown exporter %q (valid: otlp, stdout)", cfg.Tracing.Exporter),
			})
		}
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{Field: "telemetry.tracing.sampler", Message: fmt.Sprintf("unknown sampler %q", cfg.Tracing.Sampler)})
		}
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be between 0.0 and 1.0"})
	}

	return errs
}

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CHAOSLAB_"

// LoadConfig loads configuration from a YAML file, applies defaults and
// validates it. Environment variables are not consulted.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML and applies defaults. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// CHAOSLAB_SECTION_FIELD environment overrides, which take precedence over
// the file. An empty path starts from defaults.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = NewDefault()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		cfg, err = Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envFloat(name string, dst *float64) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

// applyEnvOverrides applies environment variable overrides. Malformed values
// are ignored.
func applyEnvOverrides(cfg *Config) {
	// Diagnostics
	envDuration("DIAGNOSTICS_ANALYSIS_DELAY", &cfg.Diagnostics.AnalysisDelay)
	envDuration("DIAGNOSTICS_CALL_TIMEOUT", &cfg.Diagnostics.CallTimeout)
	envString("DIAGNOSTICS_ANNOTATION_CREATOR", &cfg.Diagnostics.AnnotationCreator)
	envBool("DIAGNOSTICS_DISABLE_FLAG_ON_FAILURE", &cfg.Diagnostics.DisableFlagOnFailure)
	envBool("DIAGNOSTICS_SESSION_SCOPED_ANNOTATIONS", &cfg.Diagnostics.SessionScopedAnnotations)
	envBool("DIAGNOSTICS_PERSIST_SESSIONS", &cfg.Diagnostics.PersistSessions)

	// Retention
	envBool("RETENTION_ENABLED", &cfg.Retention.Enabled)
	envInt("RETENTION_CONTINUOUS_RETENTION_DAYS", &cfg.Retention.Continuous.RetentionDays)
	envBool("RETENTION_CONTINUOUS_ENABLED", &cfg.Retention.Continuous.Enabled)
	envInt("RETENTION_SESSIONS_DEFAULT_RETENTION_DAYS", &cfg.Retention.Sessions.DefaultRetentionDays)
	envInt("RETENTION_SESSIONS_MAX_RETENTION_DAYS", &cfg.Retention.Sessions.MaxRetentionDays)
	envBool("RETENTION_SESSIONS_CLEANUP_ENABLED", &cfg.Retention.Sessions.CleanupEnabled)
	if val := os.Getenv(EnvPrefix + "RETENTION_SESSIONS_ARCHIVE_AFTER_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Retention.Sessions.ArchiveAfterDays = &i
		}
	}
	envString("RETENTION_CONTINUOUS_SCHEDULE", &cfg.Retention.ContinuousSchedule)
	envString("RETENTION_SESSION_SCHEDULE", &cfg.Retention.SessionSchedule)
	envInt("RETENTION_LIST_PAGE_CAP", &cfg.Retention.ListPageCap)
	envInt("RETENTION_SAMPLE_CAP", &cfg.Retention.SampleCap)
	envInt("RETENTION_DELETE_CONCURRENCY", &cfg.Retention.DeleteConcurrency)

	// Object store
	envString("OBJECT_STORE_BACKEND", &cfg.ObjectStore.Backend)
	envString("OBJECT_STORE_SQLITE_PATH", &cfg.ObjectStore.SQLite.Path)
	envString("OBJECT_STORE_FILE_ROOT", &cfg.ObjectStore.File.Root)
	envBool("OBJECT_STORE_FILE_COMPRESS", &cfg.ObjectStore.File.Compress)

	// Annotations
	envString("ANNOTATIONS_BACKEND", &cfg.Annotations.Backend)
	envString("ANNOTATIONS_SQLITE_PATH", &cfg.Annotations.SQLite.Path)
	envDuration("ANNOTATIONS_DEFAULT_TTL", &cfg.Annotations.DefaultTTL)

	// Flags
	envString("FLAGS_BACKEND", &cfg.Flags.Backend)
	envString("FLAGS_FILE_PATH", &cfg.Flags.File.Path)
	envBool("FLAGS_FILE_WATCH", &cfg.Flags.File.Watch)
	if val := os.Getenv(EnvPrefix + "FLAGS_PREDEFINED"); val != "" {
		cfg.Flags.Predefined = splitList(val)
	}

	// Telemetry
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_LOGGING_REDACT", &cfg.Telemetry.Logging.Redact)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_LISTEN_ADDRESS", &cfg.Telemetry.Metrics.ListenAddress)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_EXPORTER", &cfg.Telemetry.Tracing.Exporter)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envBool("TELEMETRY_TRACING_INSECURE", &cfg.Telemetry.Tracing.Insecure)
	envFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Package config loads chaoslab configuration.
//
// Configuration is read from a YAML file, completed with defaults,
// overridden from CHAOSLAB_* environment variables and validated:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("chaoslab.yaml")
//
// A process-wide instance can be installed with Initialize and read with
// GetConfig. Library packages do not read the singleton; they take the
// section they need as an argument.
//
// Environment variables follow CHAOSLAB_SECTION_FIELD, for example
// CHAOSLAB_RETENTION_CONTINUOUS_RETENTION_DAYS=14 or
// CHAOSLAB_TELEMETRY_LOGGING_LEVEL=debug.
package config

package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Context keys for common log fields.
type contextKey string

const (
	// SessionIDKey is the context key for diagnostic session ids.
	SessionIDKey contextKey = "session_id"

	// FlagKey is the context key for fault flag names.
	FlagKey contextKey = "flag"

	// JobKey is the context key for retention job names.
	JobKey contextKey = "job"
)

// WithSessionID adds a session id to the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// GetSessionID retrieves the session id from the context.
func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(SessionIDKey).(string); ok {
		return id
	}
	return ""
}

// WithFlag adds a flag name to the context.
func WithFlag(ctx context.Context, flag string) context.Context {
	return context.WithValue(ctx, FlagKey, flag)
}

// GetFlag retrieves the flag name from the context.
func GetFlag(ctx context.Context) string {
	if flag, ok := ctx.Value(FlagKey).(string); ok {
		return flag
	}
	return ""
}

// WithJob adds a retention job name to the context.
func WithJob(ctx context.Context, job string) context.Context {
	return context.WithValue(ctx, JobKey, job)
}

// GetJob retrieves the retention job name from the context.
func GetJob(ctx context.Context) string {
	if job, ok := ctx.Value(JobKey).(string); ok {
		return job
	}
	return ""
}

// extractContextFields returns key-value pairs for logger.With.
func extractContextFields(ctx context.Context) []any {
	var fields []any

	if id := GetSessionID(ctx); id != "" {
		fields = append(fields, "session_id", id)
	}
	if flag := GetFlag(ctx); flag != "" {
		fields = append(fields, "flag", flag)
	}
	if job := GetJob(ctx); job != "" {
		fields = append(fields, "job", job)
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			"trace_id", sc.TraceID().String(),
			"span_id", sc.SpanID().String(),
		)
	}

	return fields
}

// FromContext returns base (or slog.Default when nil) with the context's
// fields attached.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	fields := extractContextFields(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

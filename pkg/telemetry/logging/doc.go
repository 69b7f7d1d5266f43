// Package logging builds the process-wide structured logger.
//
// # Overview
//
// The logging package wraps log/slog to provide:
//   - JSON or text output with a configurable minimum level
//   - Redaction of credential-like attributes before they are written
//   - Context helpers that carry session and flag identifiers, and lift the
//     active OpenTelemetry trace and span ids into log records
//
// # Usage
//
//	logger, err := logging.Setup(&cfg.Telemetry.Logging)
//	if err != nil {
//	    return err
//	}
//
//	ctx = logging.WithSessionID(ctx, session.ID)
//	logging.FromContext(ctx, logger).Info("session started")
//
// Components keep taking slog.Default().With("component", ...) so Setup must
// run before they are constructed.
//
// # Redaction
//
// Attribute values are replaced with "[REDACTED]" when the attribute key
// names a credential (token, password, secret, api_key, authorization) or
// when a string value looks like a bearer token.
package logging

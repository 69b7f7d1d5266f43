// Package telemetry groups chaoslab's own observability.
//
// # Components
//
//   - logging: slog setup, context fields (session, flag, job) and attribute redaction
//   - metrics: Prometheus collectors for sessions, flag calls, retention runs and storage samples
//   - tracing: OpenTelemetry spans around session phases and cleanup passes
//   - health: liveness, readiness and version endpoints for the run command
//
// # Usage
//
//	logger, err := logging.Setup(&cfg.Telemetry.Logging)
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	defer tracer.Shutdown(ctx)
//
//	orch, err := diagnostics.New(diagnostics.Options{
//		Flags:       controller,
//		Annotations: recorder,
//		Metrics:     collector,
//		Tracer:      tracer.Tracer(),
//	})
//
// Every component is optional: a nil *metrics.Collector records nothing and a
// disabled tracer hands out no-op spans.
package telemetry

// Package tracing configures OpenTelemetry tracing for chaoslab.
//
// # Overview
//
// New builds a TracerProvider from TracingConfig and installs it as the
// global provider, so packages that call otel.Tracer pick it up without
// being handed a tracer. Two exporters are supported:
//   - otlp: OTLP over gRPC to a collector
//   - stdout: pretty-printed spans on stdout, for local runs
//
// When tracing is disabled New returns a Tracer backed by a noop provider
// and leaves the global provider untouched.
//
// # Sampling Strategies
//
//   - always: sample every trace
//   - never: sample nothing
//   - ratio: sample SampleRatio of traces by trace id
//
// All samplers are wrapped in ParentBased.
//
// # Spans
//
// A diagnostic session produces one long-lived span, "diagnostics.session",
// with an event per phase. Each retention cleanup produces a
// "retention.<job>" span.
package tracing

// Package metrics provides Prometheus metrics collection for chaoslab.
//
// # Overview
//
// The metrics package instruments diagnostic sessions, flag operations,
// annotation writes and retention runs. All metrics are registered on a
// caller-supplied registry so tests and embedded uses do not collide with
// the global one.
//
// # Metrics Categories
//
//   - Session Metrics: sessions started, finished by outcome, active, duration
//   - Flag Metrics: flag enable/disable calls and annotation writes
//   - Retention Metrics: deleted objects, freed bytes, cleanup errors, runs
//   - Storage Metrics: sampled object counts and sizes per prefix
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
//
//	collector.RecordSessionStarted("paymentServiceFailure")
//	collector.RecordSessionFinished("paymentServiceFailure", "completed", 42*time.Second)
//	collector.RecordCleanup("continuous", 120, 4<<20, 0, time.Second)
//
//	http.Handle("/metrics", collector.Handler())
//
// # Nil Safety
//
// Every Record method is safe to call on a nil *Collector, so components can
// take an optional collector without guarding each call site.
//
// # Cardinality
//
// Flag names are caller-controlled. A CardinalityLimiter caps the number of
// distinct flag label values; flags past the cap are recorded as "other".
package metrics

// Package retention applies time- and policy-based cleanup to captured
// telemetry in an object store.
//
// Two kinds of data are managed:
//
//   - continuous/{YYYY-MM-DD}/...  deleted once its date is older than the
//     continuous retention period; keys without a parseable date are never
//     deleted
//   - sessions/{id}/...            deleted as a unit once the session's
//     metadata.json start time is older than the maximum retention period
//
// Every cleanup lists a bounded page of keys and deletes with bounded
// concurrency. Per-object failures are collected into the CleanupResult
// rather than aborting the batch, so a cleanup always returns a result.
//
// GetStorageUsage reports usage from a bounded sample per root prefix. The
// figures are approximate whenever the sample hit its cap.
//
// The Scheduler runs the continuous and session cleanups as two independent
// cron jobs. A failing or panicking run is logged and the schedule survives.
package retention

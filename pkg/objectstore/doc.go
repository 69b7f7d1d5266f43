// Package objectstore provides a small blob-store abstraction for captured
// telemetry: hierarchical keys, paginated listing, get, put and delete.
//
// # Key Layout
//
// Two root prefixes are used by the rest of the system:
//
//   - continuous/{YYYY-MM-DD}/...  telemetry captured outside any session
//   - sessions/{sessionID}/...     session-scoped captures plus metadata.json
//
// # Backends
//
//   - MemoryStore: in-process map, intended for tests and ephemeral runs
//   - SQLiteStore: single-file database (modernc.org/sqlite, no cgo)
//   - FileStore: one file per key under a root directory, BLAKE3 ETags and
//     optional zstd compression at rest
//
// All backends treat Delete of a missing key as a no-op, which makes
// retention deletes idempotent and safe to run concurrently with producers.
//
// # Bounded Listing
//
// List returns a single page. ListBounded walks pages until it has collected
// a caller-supplied maximum number of objects, so callers can put a hard cap
// on listing cost regardless of how large the namespace is:
//
//	objects, truncated, err := objectstore.ListBounded(ctx, store, "continuous/", 5000)
package objectstore

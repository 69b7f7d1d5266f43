// Package recorder implements annotations.Recorder on top of an
// annotations.Storage backend.
//
// Writes are synchronous: Annotate returns only after the record is stored,
// so the returned ID can be appended to a session immediately.
package recorder

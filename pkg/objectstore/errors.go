package objectstore

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned (wrapped) when a key does not exist.
var ErrNotFound = errors.New("object not found")

// StorageError represents a failure of a storage backend operation.
type StorageError struct {
	Backend   string // "memory", "sqlite", "file"
	Operation string // "list", "get", "put", "delete"
	Key       string
	Retryable bool
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error [backend=%s, operation=%s, key=%s]: %v", e.Backend, e.Operation, e.Key, e.Cause)
	}
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation, key string, retryable bool, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Key:       key,
		Retryable: retryable,
		Cause:     cause,
	}
}

// IsRetryable reports whether err is a StorageError marked retryable.
func IsRetryable(err error) bool {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

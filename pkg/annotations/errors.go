package annotations

import "fmt"

// StorageError represents an error from an annotation storage backend.
type StorageError struct {
	Backend   string // "memory", "sqlite"
	Operation string // "store", "query", "delete_expired"
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("annotation storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// ValidationError reports a malformed record.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid annotation [field=%s]: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// RecorderError represents an error while recording an annotation.
type RecorderError struct {
	Key   string // Annotation key
	Cause error
}

// Error implements the error interface.
func (e *RecorderError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("recorder error [key=%s]: %v", e.Key, e.Cause)
	}
	return fmt.Sprintf("recorder error: %v", e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *RecorderError) Unwrap() error {
	return e.Cause
}

// NewRecorderError creates a new RecorderError.
func NewRecorderError(key string, cause error) *RecorderError {
	return &RecorderError{Key: key, Cause: cause}
}

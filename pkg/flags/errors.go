package flags

import (
	"errors"
	"fmt"
)

// Category classifies a flag controller failure.
type Category string

const (
	CategoryConnectionFailure Category = "connection_failure"
	CategoryFlagNotFound      Category = "flag_not_found"
	CategoryEvaluationError   Category = "evaluation_error"
	CategoryInvalidValue      Category = "invalid_value"
)

// Error represents a flag controller failure.
type Error struct {
	Category  Category
	Flag      string
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("flag error [category=%s, flag=%s]: %s", e.Category, e.Flag, e.Message)
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewConnectionError reports that the flag backend could not be reached.
// Connection failures are retryable.
func NewConnectionError(flag string, cause error) *Error {
	return &Error{
		Category:  CategoryConnectionFailure,
		Flag:      flag,
		Message:   "flag backend unavailable",
		Retryable: true,
		Cause:     cause,
	}
}

// NewNotFoundError reports an undefined flag.
func NewNotFoundError(flag string) *Error {
	return &Error{
		Category: CategoryFlagNotFound,
		Flag:     flag,
		Message:  "flag not defined",
	}
}

// NewEvaluationError reports a flag that exists but cannot be resolved.
func NewEvaluationError(flag, message string) *Error {
	return &Error{
		Category: CategoryEvaluationError,
		Flag:     flag,
		Message:  message,
	}
}

// NewInvalidValueError reports a flag whose value has an unexpected shape.
func NewInvalidValueError(flag, message string) *Error {
	return &Error{
		Category: CategoryInvalidValue,
		Flag:     flag,
		Message:  message,
	}
}

// CategoryOf returns the category of err, or "" if err is not a flag error.
func CategoryOf(err error) Category {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Category
	}
	return ""
}

// IsRetryable reports whether err is a retryable flag error.
func IsRetryable(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

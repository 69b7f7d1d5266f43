package retention

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is matched by errors for sessions without a descriptor.
var ErrSessionNotFound = errors.New("session not found")

// SessionDataError is returned by ManageSessionData.
type SessionDataError struct {
	SessionID string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *SessionDataError) Error() string {
	return fmt.Sprintf("session %s: %s failed: %v", e.SessionID, e.Operation, e.Cause)
}

// Unwrap returns the underlying error.
func (e *SessionDataError) Unwrap() error {
	return e.Cause
}

// NewSessionNotFoundError reports a session with no metadata.json.
func NewSessionNotFoundError(sessionID string, cause error) *SessionDataError {
	return &SessionDataError{
		SessionID: sessionID,
		Operation: "load metadata",
		Cause:     fmt.Errorf("%w: %w", ErrSessionNotFound, cause),
	}
}

// NewSessionDataError wraps any other session data failure.
func NewSessionDataError(sessionID, operation string, cause error) *SessionDataError {
	return &SessionDataError{
		SessionID: sessionID,
		Operation: operation,
		Cause:     cause,
	}
}

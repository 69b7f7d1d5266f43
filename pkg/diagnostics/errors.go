package diagnostics

import (
	"errors"
	"fmt"
)

// Reason tags a SessionError.
type Reason string

const (
	ReasonSessionNotFound      Reason = "session_not_found"
	ReasonInvalidState         Reason = "invalid_state"
	ReasonOrchestrationFailure Reason = "orchestration_failure"
	ReasonTimeout              Reason = "timeout"
)

// Sentinel errors matched with errors.Is against any *SessionError of the
// same reason.
var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrInvalidState         = errors.New("invalid session state")
	ErrOrchestrationFailure = errors.New("orchestration failure")
	ErrTimeout              = errors.New("operation timed out")
)

func (r Reason) sentinel() error {
	switch r {
	case ReasonSessionNotFound:
		return ErrSessionNotFound
	case ReasonInvalidState:
		return ErrInvalidState
	case ReasonOrchestrationFailure:
		return ErrOrchestrationFailure
	case ReasonTimeout:
		return ErrTimeout
	}
	return nil
}

// SessionError is returned by session operations and recorded on failed
// sessions.
type SessionError struct {
	Reason    Reason
	SessionID string
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	msg := fmt.Sprintf("%s [session_id=%s]: %s", e.Reason, e.SessionID, e.Message)
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause error.
func (e *SessionError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel error for e.Reason.
func (e *SessionError) Is(target error) bool {
	return target != nil && target == e.Reason.sentinel()
}

// NewNotFoundError reports an unknown session id.
func NewNotFoundError(sessionID string) *SessionError {
	return &SessionError{
		Reason:    ReasonSessionNotFound,
		SessionID: sessionID,
		Message:   "no such session",
	}
}

// NewInvalidStateError reports an operation not allowed in the current phase.
func NewInvalidStateError(sessionID, operation string, phase Phase) *SessionError {
	return &SessionError{
		Reason:    ReasonInvalidState,
		SessionID: sessionID,
		Message:   fmt.Sprintf("cannot %s session in phase %s", operation, phase),
	}
}

// NewOrchestrationError reports a failure inside the background sequence.
func NewOrchestrationError(sessionID, step string, cause error) *SessionError {
	return &SessionError{
		Reason:    ReasonOrchestrationFailure,
		SessionID: sessionID,
		Message:   step + " failed",
		Cause:     cause,
	}
}

// NewTimeoutError reports a collaborator call that exceeded its deadline.
func NewTimeoutError(sessionID, operation string, cause error) *SessionError {
	return &SessionError{
		Reason:    ReasonTimeout,
		SessionID: sessionID,
		Message:   operation + " timed out",
		Cause:     cause,
	}
}

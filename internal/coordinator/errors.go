package coordinator

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is matching against the typed errors below.
var (
	ErrPollingTimeout = errors.New("polling timeout")
	ErrRemoteFailure  = errors.New("remote failure")
	ErrInvalidState   = errors.New("invalid document request state")

	// ErrArtifactNotFound is returned when a completed request carries no
	// artifact reference.
	ErrArtifactNotFound = errors.New("document artifact not found")
)

const genericFailureMessage = "failed to generate document"

// TimeoutError reports that the polling budget was spent before the request
// reached a terminal state.
type TimeoutError struct {
	RequestID string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout while waiting for document result for request %s", e.RequestID)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrPollingTimeout
}

// RemoteFailureError reports that the request finished in the failed state.
// Code and Message carry what the generator reported, when anything.
type RemoteFailureError struct {
	RequestID string
	Code      string
	Message   string
}

func (e *RemoteFailureError) Error() string {
	msg := e.Reason()
	if e.Code == "" {
		return fmt.Sprintf("request %s: %s", e.RequestID, msg)
	}
	return fmt.Sprintf("request %s: %s (code %s)", e.RequestID, msg, e.Code)
}

// Reason returns the reported message, or a generic one when the generator
// gave none.
func (e *RemoteFailureError) Reason() string {
	if e.Message == "" {
		return genericFailureMessage
	}
	return e.Message
}

func (e *RemoteFailureError) Is(target error) bool {
	return target == ErrRemoteFailure
}

// InvalidStateError reports that the terminal lookup returned a status outside
// the terminal set. It is never retried.
type InvalidStateError struct {
	RequestID string
	Status    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid document request status %q for request %s", e.Status, e.RequestID)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

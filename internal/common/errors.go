package common

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized indicates a missing or invalid credential
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnknownSession indicates a session id that the last catalog listing did not offer
	ErrUnknownSession = errors.New("session not in catalog")

	// ErrTransientStore indicates a read from the transcript store failed and an empty
	// substitute was used instead
	ErrTransientStore = errors.New("transient store error")

	// ErrGate indicates the sensitivity classifier could not produce a verdict
	ErrGate = errors.New("sensitivity gate error")

	// ErrAgentInvocation indicates the agent execution capability failed or timed out
	ErrAgentInvocation = errors.New("agent invocation failed")

	// ErrStoreWrite indicates a message could not be appended to the transcript store
	ErrStoreWrite = errors.New("store write failed")

	// ErrStoreUnavailable indicates the store could not be reached at all
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidInput indicates invalid user input
	ErrInvalidInput = errors.New("invalid input")

	// ErrTurnInProgress indicates another turn holds the session
	ErrTurnInProgress = errors.New("turn already in progress")
)

func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// KindError tags an underlying error with one of the sentinel kinds above so
// callers can use errors.Is on both the kind and the cause.
type KindError struct {
	Kind error
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *KindError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func WithKind(kind, err error) error {
	return &KindError{Kind: kind, Err: err}
}

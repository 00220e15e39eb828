package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNoQuestions is wrapped in a LoadError when the bank returns an
	// empty set.
	ErrNoQuestions = errors.New("no questions available")

	// ErrClosed is returned by every call after Close.
	ErrClosed = errors.New("session closed")

	// ErrFinishPending refuses a Finish while consolidated feedback for
	// an earlier one is in flight.
	ErrFinishPending = errors.New("finish already pending")

	// ErrBusy refuses navigation while practice feedback is in flight or
	// a load is in progress.
	ErrBusy = errors.New("session busy")

	// ErrInvalidState reports an operation the current state does not
	// allow.
	ErrInvalidState = errors.New("invalid session state")
)

// LoadError is the only error surfaced to users. It is recoverable: call
// Load again.
type LoadError struct {
	ModuleID string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("unable to load module %s: %v", e.ModuleID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// InvalidSubmissionError reports a rejected selection or submission. The
// call it came from had no effect.
type InvalidSubmissionError struct {
	Index  int
	Reason string
}

func (e *InvalidSubmissionError) Error() string {
	return fmt.Sprintf("invalid submission for question %d: %s", e.Index+1, e.Reason)
}

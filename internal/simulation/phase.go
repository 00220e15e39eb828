package simulation

import (
	"errors"
	"fmt"
)

// Phase is the orchestrator's position in a full simulation.
type Phase int

const (
	PhaseInstructions Phase = iota
	PhaseSessionActive
	PhaseBreak
	PhaseResultsPending
	PhaseResultsReady
)

func (p Phase) String() string {
	switch p {
	case PhaseInstructions:
		return "INSTRUCTIONS"
	case PhaseSessionActive:
		return "SESSION_ACTIVE"
	case PhaseBreak:
		return "BREAK"
	case PhaseResultsPending:
		return "RESULTS_PENDING"
	case PhaseResultsReady:
		return "RESULTS_READY"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

var (
	// ErrBreakTooEarly refuses EndBreak before the minimum break elapsed.
	ErrBreakTooEarly = errors.New("break cannot end yet")

	// ErrWrongPhase reports an operation the current phase does not allow.
	ErrWrongPhase = errors.New("operation not allowed in this phase")

	// ErrClosed is returned by every call after Close.
	ErrClosed = errors.New("simulation closed")
)

func wrongPhase(op string, p Phase) error {
	return fmt.Errorf("%w: %s during %s", ErrWrongPhase, op, p)
}

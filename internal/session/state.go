package session

import (
	"fmt"

	"github.com/abhisek/examiz/internal/question"
)

// State is the controller's position in the session lifecycle.
type State int

const (
	StateLoading           State = iota // No questions yet, or reset
	StateAnswering                      // Serving questions
	StateFeedbackPending                // Practice answer submitted, explanation in flight
	StateEvaluationPending              // Evaluation finished, consolidated feedback in flight
	StateComplete                       // Terminal
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "LOADING"
	case StateAnswering:
		return "ANSWERING"
	case StateFeedbackPending:
		return "FEEDBACK_PENDING"
	case StateEvaluationPending:
		return "EVALUATION_PENDING"
	case StateComplete:
		return "COMPLETE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type event int

const (
	evLoaded event = iota
	evPracticeSubmitted
	evFeedbackResolved
	evPracticeFinished
	evEvaluationFinished
	evEvaluated
	evReset
)

var eventNames = [...]string{"loaded", "practice-submitted", "feedback-resolved", "practice-finished", "evaluation-finished", "evaluated", "reset"}

func (e event) String() string { return eventNames[e] }

// transition is the only place states change.
func transition(from State, ev event) (State, error) {
	switch {
	case ev == evReset:
		return StateLoading, nil
	case from == StateLoading && ev == evLoaded:
		return StateAnswering, nil
	case from == StateAnswering && ev == evPracticeSubmitted:
		return StateFeedbackPending, nil
	case from == StateFeedbackPending && ev == evFeedbackResolved:
		return StateAnswering, nil
	case from == StateAnswering && ev == evPracticeFinished:
		return StateComplete, nil
	case from == StateAnswering && ev == evEvaluationFinished:
		return StateEvaluationPending, nil
	case from == StateEvaluationPending && ev == evEvaluated:
		return StateComplete, nil
	}
	return from, fmt.Errorf("%w: %s in %s", ErrInvalidState, ev, from)
}

// Mode selects the timing discipline of a session.
type Mode string

const (
	ModePractice   Mode = "practice"
	ModeEvaluation Mode = "evaluation"
)

// ParseMode accepts "practice" and "evaluation".
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModePractice, ModeEvaluation:
		return m, nil
	}
	return "", fmt.Errorf("unknown session mode %q", s)
}

// Kind maps the mode onto the question bank's session kind.
func (m Mode) Kind() question.Kind {
	if m == ModeEvaluation {
		return question.KindEvaluation
	}
	return question.KindPractice
}

// FinishReason records what ended a session.
type FinishReason string

const (
	FinishReasonCompleted   FinishReason = "completed"
	FinishReasonTimeExpired FinishReason = "time_expired"
)

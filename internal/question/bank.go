package question

import (
	"context"
	"errors"
)

// Kind is the kind of session questions are requested for.
type Kind string

const (
	KindPractice   Kind = "practice"
	KindEvaluation Kind = "evaluation"
)

// ErrUnknownModule is returned by banks that hold no questions for a module.
var ErrUnknownModule = errors.New("unknown module")

// Bank supplies questions for a module. Implementations return a fresh
// slice on every call; callers may reorder it.
type Bank interface {
	FetchQuestions(ctx context.Context, moduleID string, kind Kind) ([]Question, error)
}

// BankFunc adapts a function to the Bank interface.
type BankFunc func(ctx context.Context, moduleID string, kind Kind) ([]Question, error)

func (f BankFunc) FetchQuestions(ctx context.Context, moduleID string, kind Kind) ([]Question, error) {
	return f(ctx, moduleID, kind)
}

// Package diagnosis labels missed questions with the likely kind of
// error, using cheap deterministic rules over timing and accuracy.
package diagnosis

import (
	"time"

	"github.com/abhisek/examiz/internal/question"
)

// ErrorCategory classifies a missed question.
type ErrorCategory string

const (
	CategoryCareless     ErrorCategory = "careless"
	CategorySpeedRush    ErrorCategory = "speed-rush"
	CategoryKnowledgeGap ErrorCategory = "knowledge-gap"
	CategoryUnanswered   ErrorCategory = "unanswered"
)

// ClassifyInput holds the context for classifying one wrong answer.
type ClassifyInput struct {
	Question question.Question
	Selected string

	// Elapsed is the time from display to submission. Zero means unknown.
	Elapsed time.Duration

	// CompetencyAccuracy is the session accuracy (0.0-1.0) on the
	// question's competency.
	CompetencyAccuracy float64
}

// Diagnosis is the label of one missed question.
type Diagnosis struct {
	Index      int // position in the session
	QuestionID string
	Category   ErrorCategory
	Confidence float64 // 0.0-1.0
	Classifier string  // rule that matched; empty for defaults
}

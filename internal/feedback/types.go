// Package feedback turns a completed session into qualitative feedback.
//
// Every result is produced either by one call to an llm.Provider or by a
// deterministic template. Both paths return the same types; only
// Provenance tells them apart. Scores and levels are always computed by
// the scoring package, never taken from the model.
package feedback

import (
	"time"

	"github.com/abhisek/examiz/internal/diagnosis"
	"github.com/abhisek/examiz/internal/question"
	"github.com/abhisek/examiz/internal/scoring"
)

// Provenance tags the path that produced a result.
type Provenance string

const (
	ProvenanceAI       Provenance = "AI"
	ProvenanceTemplate Provenance = "TEMPLATE"
)

// List caps applied to both paths.
const (
	MaxStrengths       = 3
	MaxWeaknesses      = 3
	MaxRecommendations = 5
	MaxStrategies      = 3

	// MaxIncorrectInPrompt bounds how many missed questions are embedded
	// in a consolidated prompt.
	MaxIncorrectInPrompt = 5
)

// EvaluationResult is the immutable outcome of a completed evaluation
// session or simulation.
type EvaluationResult struct {
	ModuleID   string
	ModuleName string

	Total      int
	Correct    int
	Unanswered int
	Percentage float64

	// Score is Percentage mapped onto Scale.
	Score int
	Scale scoring.Scale

	// Level is the threshold label from scoring.ClassifyLevel. The model
	// may phrase it differently; that wording goes to LevelDescription.
	Level            string
	LevelDescription string

	TimeSpent time.Duration

	Strengths       []string
	Weaknesses      []string
	Recommendations []string
	Strategies      []string
	Analysis        string

	ByCompetency []scoring.CompetencyScore
	ByDifficulty []scoring.DifficultyScore

	// Missed labels every wrong or unanswered question with its likely
	// error category.
	Missed []diagnosis.Diagnosis

	Provenance Provenance
}

// QuestionFeedback is the immediate explanation shown after a practice
// answer.
type QuestionFeedback struct {
	QuestionID    string
	Correct       bool
	Selected      string
	CorrectOption string
	Title         string
	Explanation   string
	Tip           string
	Provenance    Provenance
}

// Section summarizes one module inside a simulation.
type Section struct {
	ModuleID string
	Name     string
	scoring.Score
}

// SessionInput is everything the generator needs about a finished session.
type SessionInput struct {
	ModuleID   string
	ModuleName string

	Questions []question.Question

	// Answers is keyed by question position. Missing positions are
	// unanswered.
	Answers map[int]question.Answer

	TimeSpent time.Duration

	// Scale overrides the generator's configured scale when set.
	Scale scoring.Scale

	// Sections lists per-module results when the input covers a whole
	// simulation.
	Sections []Section
}

// QuestionInput describes one submitted practice answer.
type QuestionInput struct {
	ModuleName string
	Question   question.Question
	Selected   string
}

// Teacher is optional instructor context woven into prompts.
type Teacher struct {
	Name  string
	Focus string
}

// PromptContext carries the branding and tier parameters shared by every
// prompt.
type PromptContext struct {
	Product string
	Scale   scoring.Scale
	Teacher *Teacher
}

// Config configures a Generator.
type Config struct {
	Prompt PromptContext

	MaxTokens         int
	QuestionMaxTokens int
	Temperature       float64

	// Timeout bounds every provider call.
	Timeout time.Duration
}

// DefaultConfig returns the standard-tier configuration.
func DefaultConfig() Config {
	return Config{
		Prompt: PromptContext{
			Product: "examiz",
			Scale:   scoring.ScaleStandard,
		},
		MaxTokens:         1200,
		QuestionMaxTokens: 400,
		Temperature:       0.4,
		Timeout:           15 * time.Second,
	}
}

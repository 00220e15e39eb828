package simulation

import (
	"time"

	"github.com/abhisek/examiz/internal/feedback"
	"github.com/abhisek/examiz/internal/question"
	"github.com/abhisek/examiz/internal/scoring"
)

// SessionResult is one completed module of a simulation.
type SessionResult struct {
	ModuleID   string
	ModuleName string
	Score      scoring.Score
	Evaluation feedback.EvaluationResult

	questions []question.Question
	answers   map[int]question.Answer
}

// Result is the aggregate of all sessions of a simulation.
type Result struct {
	ID       string
	Sessions []SessionResult

	// Total sums correct and total over every session.
	Total scoring.Score

	// Score is Total.Percentage on the 0-500 scale.
	Score      int
	Level      string
	Percentile int
	TimeSpent  time.Duration

	// Feedback is the consolidated result of the single feedback call
	// covering the whole simulation.
	Feedback feedback.EvaluationResult
}

// aggregate computes every deterministic field of a Result.
func aggregate(id string, sessions []SessionResult) Result {
	scores := make([]scoring.Score, len(sessions))
	var spent time.Duration
	for i, s := range sessions {
		scores[i] = s.Score
		spent += s.Evaluation.TimeSpent
	}
	total := scoring.Aggregate(scores...)
	score := scoring.ScaleToExternal(total.Percentage, scoring.ScaleStandard)
	return Result{
		ID:         id,
		Sessions:   sessions,
		Total:      total,
		Score:      score,
		Level:      scoring.ClassifyLevel(total.Percentage),
		Percentile: scoring.Percentile(score),
		TimeSpent:  spent,
	}
}

// consolidatedInput concatenates every session so one feedback call sees
// the whole simulation. Answer positions are shifted by the offset of
// their session.
func consolidatedInput(r Result) feedback.SessionInput {
	in := feedback.SessionInput{
		ModuleID:   "simulation",
		ModuleName: "Full simulation",
		Answers:    make(map[int]question.Answer),
		TimeSpent:  r.TimeSpent,
		Scale:      scoring.ScaleStandard,
	}
	for _, s := range r.Sessions {
		offset := len(in.Questions)
		in.Questions = append(in.Questions, s.questions...)
		for i, a := range s.answers {
			in.Answers[offset+i] = a
		}
		in.Sections = append(in.Sections, feedback.Section{
			ModuleID: s.ModuleID,
			Name:     s.ModuleName,
			Score:    s.Score,
		})
	}
	return in
}

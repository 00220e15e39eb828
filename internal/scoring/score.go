// Package scoring holds the pure, deterministic scoring rules: grading,
// external-scale mapping, level classification and breakdowns.
package scoring

import (
	"github.com/abhisek/examiz/internal/question"
)

// Score is an aggregated (correct, total, percentage) triple.
type Score struct {
	Correct    int     `json:"correct"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// NewScore builds a Score, computing the percentage. A zero total yields 0%.
func NewScore(correct, total int) Score {
	s := Score{Correct: correct, Total: total}
	if total > 0 {
		s.Percentage = float64(correct) / float64(total) * 100
	}
	return s
}

// Add returns the element-wise sum of two scores.
func (s Score) Add(o Score) Score {
	return NewScore(s.Correct+o.Correct, s.Total+o.Total)
}

// Aggregate sums any number of scores.
func Aggregate(scores ...Score) Score {
	var out Score
	for _, s := range scores {
		out = out.Add(s)
	}
	return out
}

// Grade scores answers against questions. answers is keyed by question
// index. Every question counts toward the total; questions without an
// answer are incorrect.
func Grade(questions []question.Question, answers map[int]question.Answer) Score {
	correct := 0
	for i, q := range questions {
		if a, ok := answers[i]; ok && q.IsCorrect(a.Selected) {
			correct++
		}
	}
	return NewScore(correct, len(questions))
}

// IsCorrect reports whether the answer recorded for index i is correct.
func IsCorrect(questions []question.Question, answers map[int]question.Answer, i int) bool {
	if i < 0 || i >= len(questions) {
		return false
	}
	a, ok := answers[i]
	return ok && questions[i].IsCorrect(a.Selected)
}

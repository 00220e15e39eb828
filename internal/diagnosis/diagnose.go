package diagnosis

import (
	"github.com/abhisek/examiz/internal/question"
	"github.com/abhisek/examiz/internal/scoring"
)

// Diagnose labels every missed question of a session, in session order.
// Unanswered questions are CategoryUnanswered; wrong answers no rule
// matches are CategoryKnowledgeGap.
func Diagnose(questions []question.Question, answers map[int]question.Answer, byComp []scoring.CompetencyScore) []Diagnosis {
	acc := make(map[string]float64, len(byComp))
	for _, c := range byComp {
		acc[c.Competency] = c.Percentage / 100
	}
	classifiers := DefaultClassifiers()

	var out []Diagnosis
	for i, q := range questions {
		a, answered := answers[i]
		if answered && q.IsCorrect(a.Selected) {
			continue
		}
		d := Diagnosis{Index: i, QuestionID: q.ID}
		if !answered {
			d.Category = CategoryUnanswered
			d.Confidence = 1
			out = append(out, d)
			continue
		}

		in := &ClassifyInput{
			Question:           q,
			Selected:           a.Selected,
			Elapsed:            a.Elapsed,
			CompetencyAccuracy: acc[q.Competency],
		}
		if cat, conf, name := RunClassifiers(classifiers, in); cat != "" {
			d.Category, d.Confidence, d.Classifier = cat, conf, name
		} else {
			d.Category, d.Confidence = CategoryKnowledgeGap, 0.5
		}
		out = append(out, d)
	}
	return out
}

// Count tallies diagnoses by category.
func Count(ds []Diagnosis) map[ErrorCategory]int {
	m := make(map[ErrorCategory]int)
	for _, d := range ds {
		m[d.Category]++
	}
	return m
}

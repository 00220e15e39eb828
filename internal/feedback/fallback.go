package feedback

import (
	"fmt"
	"strings"

	"github.com/abhisek/examiz/internal/diagnosis"
	"github.com/abhisek/examiz/internal/question"
	"github.com/abhisek/examiz/internal/scoring"
)

const (
	strengthThreshold = 70.0
	weaknessThreshold = 60.0
	remedialBelow     = 70.0
)

var levelDescriptions = map[string]string{
	scoring.LevelExcellent:        "Outstanding command of the material.",
	scoring.LevelVeryGood:         "Solid performance with a few gaps to close.",
	scoring.LevelGood:             "A good base; targeted practice will lift the score.",
	scoring.LevelNeedsImprovement: "Key areas still need systematic review.",
}

var consolidationRecommendations = []string{
	"Take a timed practice session every week to keep your pace steady.",
	"Review the explanation of every question you miss, even lucky guesses.",
	"Alternate modules between sessions so no area goes cold.",
	"Keep an error log and revisit it before each evaluation.",
}

var studyStrategies = []string{
	"Read the whole question and every option before choosing.",
	"Eliminate clearly wrong options first, then compare the rest.",
	"Budget your time per question and move on when you pass it.",
}

// measure computes the deterministic part of a result shared by both
// paths.
func measure(in SessionInput, scale scoring.Scale) EvaluationResult {
	s := scoring.Grade(in.Questions, in.Answers)
	level := scoring.ClassifyLevel(s.Percentage)
	byComp := scoring.ByCompetency(in.Questions, in.Answers)
	return EvaluationResult{
		ModuleID:         in.ModuleID,
		ModuleName:       in.ModuleName,
		Total:            s.Total,
		Correct:          s.Correct,
		Unanswered:       unanswered(in),
		Percentage:       s.Percentage,
		Score:            scoring.ScaleToExternal(s.Percentage, scale),
		Scale:            scale,
		Level:            level,
		LevelDescription: levelDescriptions[level],
		TimeSpent:        in.TimeSpent,
		ByCompetency:     byComp,
		ByDifficulty:     scoring.ByDifficulty(in.Questions, in.Answers),
		Missed:           diagnosis.Diagnose(in.Questions, in.Answers, byComp),
	}
}

func unanswered(in SessionInput) int {
	n := 0
	for i := range in.Questions {
		if _, ok := in.Answers[i]; !ok {
			n++
		}
	}
	return n
}

// FallbackEvaluation builds the template result on the given scale. It
// never calls a provider and always returns a complete result.
func FallbackEvaluation(in SessionInput, scale scoring.Scale) EvaluationResult {
	r := measure(in, scale)
	applyTemplate(&r)
	return r
}

func applyTemplate(r *EvaluationResult) {
	r.Provenance = ProvenanceTemplate

	r.Strengths = nil
	r.Weaknesses = nil
	for _, c := range r.ByCompetency {
		switch {
		case c.Percentage >= strengthThreshold:
			r.Strengths = append(r.Strengths, fmt.Sprintf("Strong command of %s (%.0f%%).", c.Competency, c.Percentage))
		case c.Percentage < weaknessThreshold:
			r.Weaknesses = append(r.Weaknesses, fmt.Sprintf("%s needs reinforcement (%.0f%%).", c.Competency, c.Percentage))
		}
	}
	if len(r.Strengths) == 0 {
		r.Strengths = []string{"You completed the whole session; that persistence is the base to build on."}
	}
	r.Strengths = truncate(r.Strengths, MaxStrengths)
	r.Weaknesses = truncate(r.Weaknesses, MaxWeaknesses)

	var recs []string
	if r.Percentage < remedialBelow {
		recs = append(recs,
			fmt.Sprintf("Revisit the fundamentals of %s before your next attempt.", weakestArea(r.ByCompetency)),
			"Redo every question you missed and compare your reasoning with the explanation.",
		)
	}
	recs = append(recs, consolidationRecommendations...)
	r.Recommendations = truncate(recs, MaxRecommendations)

	r.Strategies = append([]string(nil), studyStrategies...)
	r.Analysis = templateAnalysis(r)
}

func weakestArea(cs []scoring.CompetencyScore) string {
	if len(cs) == 0 {
		return "this module"
	}
	weakest := cs[0]
	for _, c := range cs[1:] {
		if c.Percentage < weakest.Percentage {
			weakest = c
		}
	}
	return weakest.Competency
}

func templateAnalysis(r *EvaluationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You answered %d of %d questions correctly (%.1f%%), a score of %d on the %d-point scale. Level: %s.",
		r.Correct, r.Total, r.Percentage, r.Score, r.Scale.Max(), r.Level)
	if r.Unanswered > 0 {
		fmt.Fprintf(&b, " Unanswered: %d, scored as incorrect.", r.Unanswered)
	}
	counts := diagnosis.Count(r.Missed)
	if n := counts[diagnosis.CategorySpeedRush]; n > 0 {
		fmt.Fprintf(&b, " %d wrong answers came in well under the expected time; take a moment to check every option.", n)
	}
	if n := counts[diagnosis.CategoryCareless]; n > 0 {
		fmt.Fprintf(&b, " %d misses were in competencies you otherwise handle well, which points to slips rather than gaps.", n)
	}
	return b.String()
}

// FallbackQuestion synthesizes immediate feedback from the stored
// explanation.
func FallbackQuestion(in QuestionInput) QuestionFeedback {
	q := in.Question
	fb := QuestionFeedback{
		QuestionID:    q.ID,
		Correct:       q.IsCorrect(in.Selected),
		Selected:      strings.ToUpper(strings.TrimSpace(in.Selected)),
		CorrectOption: strings.ToUpper(q.Correct),
		Provenance:    ProvenanceTemplate,
	}

	var b strings.Builder
	if fb.Correct {
		fb.Title = "Correct!"
		fmt.Fprintf(&b, "%s is the right answer.", fb.CorrectOption)
	} else {
		fb.Title = "Not quite"
		fmt.Fprintf(&b, "You chose %s; the correct answer is %s", fb.Selected, fb.CorrectOption)
		if text := q.OptionText(q.Correct); text != "" {
			fmt.Fprintf(&b, " (%s)", text)
		}
		b.WriteString(".")
	}
	if q.Explanation != "" {
		b.WriteString(" ")
		b.WriteString(q.Explanation)
	}
	fb.Explanation = b.String()
	fb.Tip = questionTip(q)
	return fb
}

func questionTip(q question.Question) string {
	area := q.Competency
	if area == "" {
		area = "this topic"
	}
	switch q.Difficulty {
	case question.DifficultyHard:
		return fmt.Sprintf("Hard %s items reward breaking the problem into steps before looking at the options.", area)
	case question.DifficultyEasy:
		return fmt.Sprintf("Easy %s items are quick points; read carefully to avoid slips.", area)
	default:
		return fmt.Sprintf("Check each option against the prompt when working on %s.", area)
	}
}

func truncate(items []string, n int) []string {
	if len(items) > n {
		items = items[:n]
	}
	return items
}

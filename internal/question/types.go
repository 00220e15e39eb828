package question

import (
	"fmt"
	"strings"
	"time"
)

// Difficulty classifies how hard a question is.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// AllDifficulties returns the difficulty levels in ascending order.
func AllDifficulties() []Difficulty {
	return []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}
}

// ParseDifficulty normalizes a difficulty label. Unknown labels map to MEDIUM.
func ParseDifficulty(s string) Difficulty {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EASY":
		return DifficultyEasy
	case "HARD":
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// Rank orders difficulties: EASY=0, MEDIUM=1, HARD=2.
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyEasy:
		return 0
	case DifficultyHard:
		return 2
	default:
		return 1
	}
}

// Question is a read-only multiple-choice item supplied by a Bank.
type Question struct {
	// ID uniquely identifies the question within its bank.
	ID string `json:"id"`

	// Prompt is the question stem shown to the learner.
	Prompt string `json:"prompt"`

	// Context is optional supporting text (a passage, a table, a chart
	// description) shown above the prompt.
	Context string `json:"context,omitempty"`

	// Options holds the option texts. Option i is identified by the
	// letter returned by Letter(i): "A", "B", "C", ...
	Options []string `json:"options"`

	// Correct is the letter of the correct option.
	Correct string `json:"correct"`

	// Competency tags the skill the question measures. Free-form.
	Competency string `json:"competency"`

	Difficulty Difficulty `json:"difficulty"`

	// Explanation is the stored worked solution. May be empty.
	Explanation string `json:"explanation,omitempty"`

	// EstimatedSecs is the expected time to answer, used for the
	// evaluation-mode time budget.
	EstimatedSecs int `json:"estimated_secs"`

	// Kinds restricts the question to practice or evaluation sessions.
	// Empty means both.
	Kinds []Kind `json:"kinds,omitempty"`
}

// DefaultEstimatedSecs is the allowance of a question that states none.
const DefaultEstimatedSecs = 60

// TimeBudget returns the question's evaluation-mode allowance.
func (q Question) TimeBudget() time.Duration {
	if q.EstimatedSecs <= 0 {
		return DefaultEstimatedSecs * time.Second
	}
	return time.Duration(q.EstimatedSecs) * time.Second
}

// Letter returns the option identifier for position i (0 → "A").
func Letter(i int) string {
	return string(rune('A' + i))
}

// HasOption reports whether letter identifies one of q's options.
func (q Question) HasOption(letter string) bool {
	l := strings.ToUpper(strings.TrimSpace(letter))
	for i := range q.Options {
		if Letter(i) == l {
			return true
		}
	}
	return false
}

// OptionText returns the text of the option identified by letter, or "".
func (q Question) OptionText(letter string) string {
	l := strings.ToUpper(strings.TrimSpace(letter))
	for i, o := range q.Options {
		if Letter(i) == l {
			return o
		}
	}
	return ""
}

// IsCorrect reports whether letter is the correct option, ignoring case.
func (q Question) IsCorrect(letter string) bool {
	return strings.EqualFold(strings.TrimSpace(letter), strings.TrimSpace(q.Correct))
}

// Allows reports whether the question may be served in a session of kind k.
func (q Question) Allows(k Kind) bool {
	if len(q.Kinds) == 0 {
		return true
	}
	for _, qk := range q.Kinds {
		if qk == k {
			return true
		}
	}
	return false
}

// Validate checks the structural requirements of a question.
func (q Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("question has no id")
	}
	if strings.TrimSpace(q.Prompt) == "" {
		return fmt.Errorf("question %s: empty prompt", q.ID)
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("question %s: need at least 2 options, got %d", q.ID, len(q.Options))
	}
	if len(q.Options) > 26 {
		return fmt.Errorf("question %s: too many options (%d)", q.ID, len(q.Options))
	}
	if !q.HasOption(q.Correct) {
		return fmt.Errorf("question %s: correct option %q is not one of its options", q.ID, q.Correct)
	}
	if q.EstimatedSecs < 0 {
		return fmt.Errorf("question %s: negative estimated time", q.ID)
	}
	return nil
}

func (q Question) clone() Question {
	q.Options = append([]string(nil), q.Options...)
	q.Kinds = append([]Kind(nil), q.Kinds...)
	return q
}

// Answer is a submitted choice for one question.
type Answer struct {
	QuestionID string
	Selected   string
	AnsweredAt time.Time

	// Elapsed is the time from the question first being displayed to
	// submission.
	Elapsed time.Duration
}

package diagnosis

import "time"

// SpeedRushFloor is the response time under which a wrong answer is
// always a speed-rush.
const SpeedRushFloor = 2 * time.Second

// SpeedRushFraction is the share of a question's estimated time under
// which (exclusive) a wrong answer counts as a speed-rush.
const SpeedRushFraction = 0.2

// SpeedRushClassifier flags answers submitted well under the expected time.
type SpeedRushClassifier struct{}

func (c *SpeedRushClassifier) Name() string { return "speed-rush" }

func (c *SpeedRushClassifier) Classify(input *ClassifyInput) (ErrorCategory, float64) {
	if input.Elapsed <= 0 {
		return "", 0
	}
	limit := time.Duration(float64(input.Question.EstimatedSecs) * SpeedRushFraction * float64(time.Second))
	if limit < SpeedRushFloor {
		limit = SpeedRushFloor
	}
	if input.Elapsed < limit {
		return CategorySpeedRush, 0.9
	}
	return "", 0
}

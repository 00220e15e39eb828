package scoring

import "math"

// Scale selects the external grading scale of a product tier.
type Scale string

const (
	// ScalePremium maps percentages onto 0–100.
	ScalePremium Scale = "premium"
	// ScaleStandard maps percentages onto the 0–500 national scale.
	ScaleStandard Scale = "standard"
)

// ParseScale returns the scale named s, defaulting to ScaleStandard.
func ParseScale(s string) Scale {
	if Scale(s) == ScalePremium {
		return ScalePremium
	}
	return ScaleStandard
}

// Max returns the maximum value of the scale.
func (s Scale) Max() int {
	if s == ScalePremium {
		return 100
	}
	return 500
}

// ScaleToExternal maps a percentage onto the external scale. Both curves
// are monotonic non-decreasing in percentage.
func ScaleToExternal(percentage float64, scale Scale) int {
	if math.IsNaN(percentage) {
		return 0
	}
	var v float64
	switch scale {
	case ScalePremium:
		v = math.Round(percentage)
	default:
		v = math.Round(percentage * 5)
	}
	return clamp(int(v), 0, scale.Max())
}

// Levels, from best to worst.
const (
	LevelExcellent        = "Excellent"
	LevelVeryGood         = "Very Good"
	LevelGood             = "Good"
	LevelNeedsImprovement = "Needs Improvement"
)

// ClassifyLevel maps a percentage to its qualitative level.
func ClassifyLevel(percentage float64) string {
	switch {
	case percentage >= 90:
		return LevelExcellent
	case percentage >= 80:
		return LevelVeryGood
	case percentage >= 70:
		return LevelGood
	default:
		return LevelNeedsImprovement
	}
}

// Reference constants of the national score distribution on the 0–500
// scale, used for the percentile comparison.
const (
	NationalMean   = 250.0
	NationalStdDev = 50.0
)

// Percentile places a 0–500 score within the national reference
// distribution. The result is clamped to [1, 99].
func Percentile(score int) int {
	z := (float64(score) - NationalMean) / NationalStdDev
	cdf := 0.5 * (1 + math.Erf(z/math.Sqrt2))
	return clamp(int(math.Round(cdf*100)), 1, 99)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

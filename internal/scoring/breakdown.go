package scoring

import "github.com/abhisek/examiz/internal/question"

// CompetencyScore is the score of one competency tag.
type CompetencyScore struct {
	Competency string `json:"competency"`
	Score
}

// DifficultyScore is the score of one difficulty level.
type DifficultyScore struct {
	Difficulty question.Difficulty `json:"difficulty"`
	Score
}

// ByCompetency groups questions by competency tag and grades each group.
// Groups are returned in order of first appearance.
func ByCompetency(questions []question.Question, answers map[int]question.Answer) []CompetencyScore {
	var order []string
	counts := make(map[string]*[2]int)
	for i, q := range questions {
		c, ok := counts[q.Competency]
		if !ok {
			c = &[2]int{}
			counts[q.Competency] = c
			order = append(order, q.Competency)
		}
		c[1]++
		if IsCorrect(questions, answers, i) {
			c[0]++
		}
	}

	out := make([]CompetencyScore, 0, len(order))
	for _, name := range order {
		c := counts[name]
		out = append(out, CompetencyScore{Competency: name, Score: NewScore(c[0], c[1])})
	}
	return out
}

// ByDifficulty groups questions by difficulty and grades each group.
// Only levels that occur are returned, EASY first.
func ByDifficulty(questions []question.Question, answers map[int]question.Answer) []DifficultyScore {
	counts := make(map[question.Difficulty]*[2]int)
	for i, q := range questions {
		d := question.ParseDifficulty(string(q.Difficulty))
		c, ok := counts[d]
		if !ok {
			c = &[2]int{}
			counts[d] = c
		}
		c[1]++
		if IsCorrect(questions, answers, i) {
			c[0]++
		}
	}

	var out []DifficultyScore
	for _, d := range question.AllDifficulties() {
		if c, ok := counts[d]; ok {
			out = append(out, DifficultyScore{Difficulty: d, Score: NewScore(c[0], c[1])})
		}
	}
	return out
}

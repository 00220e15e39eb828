package session

import (
	"time"

	"github.com/abhisek/examiz/internal/question"
)

// Session is the state of one loaded module. It is owned by a Controller
// and never shared.
type Session struct {
	ID        string
	ModuleID  string
	Mode      Mode
	Questions []question.Question
	StartedAt time.Time

	// Budget and Remaining are zero in practice mode.
	Budget    time.Duration
	Remaining time.Duration

	current  int
	answers  map[int]question.Answer
	order    []int
	visited  map[int]bool
	shownAt  map[int]time.Time
	selected map[int]string
}

func newSession(id, moduleID string, mode Mode, qs []question.Question, now time.Time) *Session {
	s := &Session{
		ID:        id,
		ModuleID:  moduleID,
		Mode:      mode,
		Questions: qs,
		StartedAt: now,
		answers:   make(map[int]question.Answer),
		visited:   make(map[int]bool),
		shownAt:   make(map[int]time.Time),
		selected:  make(map[int]string),
	}
	if mode == ModeEvaluation {
		for _, q := range qs {
			s.Budget += q.TimeBudget()
		}
		s.Remaining = s.Budget
	}
	s.visit(0, now)
	return s
}

// visit marks index i displayed. The first question's clock starts with
// the session.
func (s *Session) visit(i int, now time.Time) {
	s.current = i
	if s.visited[i] {
		return
	}
	s.visited[i] = true
	if i == 0 {
		now = s.StartedAt
	}
	s.shownAt[i] = now
}

func (s *Session) answered(i int) bool {
	_, ok := s.answers[i]
	return ok
}

// record stores the answer for index i. An index carries at most one
// answer and only after it was visited.
func (s *Session) record(i int, letter string, now time.Time) (question.Answer, bool) {
	if s.answered(i) || !s.visited[i] {
		return question.Answer{}, false
	}
	a := question.Answer{
		QuestionID: s.Questions[i].ID,
		Selected:   letter,
		AnsweredAt: now,
		Elapsed:    now.Sub(s.shownAt[i]),
	}
	s.answers[i] = a
	s.order = append(s.order, i)
	return a, true
}

// answerMap returns a copy keyed by position.
func (s *Session) answerMap() map[int]question.Answer {
	m := make(map[int]question.Answer, len(s.answers))
	for k, v := range s.answers {
		m[k] = v
	}
	return m
}

// inOrder returns answers in submission order.
func (s *Session) inOrder() []question.Answer {
	out := make([]question.Answer, len(s.order))
	for i, idx := range s.order {
		out[i] = s.answers[idx]
	}
	return out
}

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/examiz/internal/feedback"
	"github.com/abhisek/examiz/internal/progress"
	"github.com/abhisek/examiz/internal/question"
	"github.com/abhisek/examiz/internal/scoring"
)

func testQuestions(n, secs int) []question.Question {
	qs := make([]question.Question, n)
	for i := range qs {
		qs[i] = question.Question{
			ID:            question.Letter(i),
			Prompt:        "Question " + question.Letter(i),
			Options:       []string{"one", "two", "three", "four"},
			Correct:       "B",
			Competency:    "Algebra",
			Difficulty:    question.DifficultyMedium,
			EstimatedSecs: secs,
		}
	}
	return qs
}

func staticBank(qs []question.Question) question.Bank {
	return question.BankFunc(func(context.Context, string, question.Kind) ([]question.Question, error) {
		return append([]question.Question(nil), qs...), nil
	})
}

func identity([]question.Question) {}

// gatedFeedback blocks every call until release is closed or the call's
// context ends.
type gatedFeedback struct {
	release chan struct{}

	mu        sync.Mutex
	explained int
	evaluated int
	lastEval  feedback.SessionInput
}

func newGated() *gatedFeedback { return &gatedFeedback{release: make(chan struct{})} }

func (g *gatedFeedback) wait(ctx context.Context) {
	select {
	case <-g.release:
	case <-ctx.Done():
	}
}

func (g *gatedFeedback) Evaluate(ctx context.Context, in feedback.SessionInput) feedback.EvaluationResult {
	g.wait(ctx)
	g.mu.Lock()
	g.evaluated++
	g.lastEval = in
	g.mu.Unlock()
	return feedback.FallbackEvaluation(in, scoring.ScaleStandard)
}

func (g *gatedFeedback) Explain(ctx context.Context, in feedback.QuestionInput) feedback.QuestionFeedback {
	g.wait(ctx)
	g.mu.Lock()
	g.explained++
	g.mu.Unlock()
	return feedback.FallbackQuestion(in)
}

func newController(t *testing.T, qs []question.Question, gen Feedback, opts Options) *Controller {
	t.Helper()
	if opts.Shuffle == nil {
		opts.Shuffle = identity
	}
	opts.ManualClock = true
	c := New(staticBank(qs), gen, opts)
	t.Cleanup(c.Close)
	return c
}

func answerCurrent(t *testing.T, c *Controller, letter string) *feedback.QuestionFeedback {
	t.Helper()
	require.NoError(t, c.SelectOption(letter))
	fb, err := c.SubmitAnswer(context.Background())
	require.NoError(t, err)
	return fb
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from State
		ev   event
		want State
		ok   bool
	}{
		{StateLoading, evLoaded, StateAnswering, true},
		{StateAnswering, evPracticeSubmitted, StateFeedbackPending, true},
		{StateFeedbackPending, evFeedbackResolved, StateAnswering, true},
		{StateAnswering, evPracticeFinished, StateComplete, true},
		{StateAnswering, evEvaluationFinished, StateEvaluationPending, true},
		{StateEvaluationPending, evEvaluated, StateComplete, true},
		{StateComplete, evReset, StateLoading, true},
		{StateEvaluationPending, evReset, StateLoading, true},

		{StateLoading, evPracticeSubmitted, StateLoading, false},
		{StateAnswering, evLoaded, StateAnswering, false},
		{StateFeedbackPending, evPracticeFinished, StateFeedbackPending, false},
		{StateEvaluationPending, evEvaluationFinished, StateEvaluationPending, false},
		{StateComplete, evLoaded, StateComplete, false},
		{StateComplete, evEvaluated, StateComplete, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.ev.String(), func(t *testing.T) {
			got, err := transition(tt.from, tt.ev)
			assert.Equal(t, tt.want, got)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidState)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("evaluation")
	require.NoError(t, err)
	assert.Equal(t, ModeEvaluation, m)
	assert.Equal(t, question.KindEvaluation, m.Kind())
	assert.Equal(t, question.KindPractice, ModePractice.Kind())

	_, err = ParseMode("exam")
	assert.Error(t, err)
}

func TestPractice_AllCorrect(t *testing.T) {
	sink := &progress.Memory{}
	c := newController(t, testQuestions(3, 60), nil, Options{Sink: sink})

	require.NoError(t, c.Load(context.Background(), question.ModuleMathematics, ModePractice))
	assert.Equal(t, StateAnswering, c.State())

	for i := 0; i < 3; i++ {
		fb := answerCurrent(t, c, "B")
		require.NotNil(t, fb)
		assert.True(t, fb.Correct)
		assert.Equal(t, feedback.ProvenanceTemplate, fb.Provenance)
		assert.Equal(t, fb, c.Feedback())
		require.NoError(t, c.NextQuestion(context.Background()))
	}

	assert.Equal(t, StateComplete, c.State())
	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed after completion")
	}

	score := c.RawScore()
	assert.Equal(t, 3, score.Correct)
	assert.Equal(t, 3, score.Total)
	assert.InDelta(t, 100.0, score.Percentage, 1e-9)

	_, ok := c.Result()
	assert.False(t, ok, "practice sessions have no consolidated result")

	rec, ok := sink.Latest(question.ModuleMathematics, question.KindPractice)
	require.True(t, ok)
	assert.Equal(t, 100, rec.Score)
	assert.True(t, progress.Unlocked(rec.Score))
	assert.Len(t, sink.Records(), 1)
}

func TestEvaluation_TimerExpiry(t *testing.T) {
	sink := &progress.Memory{}
	var completed int
	c := newController(t, testQuestions(2, 5), nil, Options{
		Sink:       sink,
		OnComplete: func(*Controller) { completed++ },
	})

	require.NoError(t, c.Load(context.Background(), question.ModuleMathematics, ModeEvaluation))
	v := c.Snapshot()
	assert.Equal(t, 10*time.Second, v.Budget)
	assert.Equal(t, 10*time.Second, v.Remaining)

	for i := 0; i < 9; i++ {
		c.Tick()
	}
	assert.Equal(t, StateAnswering, c.State())
	assert.Equal(t, time.Second, c.Snapshot().Remaining)

	c.Tick()
	assert.Equal(t, StateComplete, c.State())
	assert.Equal(t, FinishReasonTimeExpired, c.Snapshot().FinishReason)
	assert.Equal(t, 1, completed)

	res, ok := c.Result()
	require.True(t, ok)
	assert.Equal(t, 0, res.Correct)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.Unanswered)
	assert.Equal(t, 0, res.Score)
	assert.Empty(t, c.Answers(), "expired questions are not recorded as answers")

	rec, ok := sink.Latest(question.ModuleMathematics, question.KindEvaluation)
	require.True(t, ok)
	assert.Equal(t, 0, rec.Score)

	// further ticks do nothing
	c.Tick()
	assert.Equal(t, 1, completed)
}

func TestEvaluation_SubmitAndFinish(t *testing.T) {
	c := newController(t, testQuestions(4, 30), nil, Options{})
	require.NoError(t, c.Load(context.Background(), "m", ModeEvaluation))

	fb := answerCurrent(t, c, "B")
	assert.Nil(t, fb, "evaluation mode gives no per-question feedback")
	require.NoError(t, c.NextQuestion(context.Background()))
	answerCurrent(t, c, "C")

	require.NoError(t, c.Finish(context.Background()))
	res, ok := c.Result()
	require.True(t, ok)
	assert.Equal(t, 1, res.Correct)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 2, res.Unanswered)
	assert.Equal(t, scoring.ScaleToExternal(25, scoring.ScaleStandard), res.Score)

	// idempotent once complete
	require.NoError(t, c.Finish(context.Background()))
	assert.Len(t, c.Answers(), 2)
}

func TestSubmission_Guards(t *testing.T) {
	c := newController(t, testQuestions(2, 30), nil, Options{})
	require.NoError(t, c.Load(context.Background(), "m", ModePractice))

	_, err := c.SubmitAnswer(context.Background())
	var invalid *InvalidSubmissionError
	require.ErrorAs(t, err, &invalid, "nothing selected")
	assert.Equal(t, 0, invalid.Index)

	err = c.SelectOption("Z")
	require.ErrorAs(t, err, &invalid, "unknown option")

	require.NoError(t, c.SelectOption(" a "))
	require.NoError(t, c.SelectOption("c"), "selection may change before submit")
	fb, err := c.SubmitAnswer(context.Background())
	require.NoError(t, err)
	assert.False(t, fb.Correct)
	assert.Equal(t, "C", fb.Selected)

	_, err = c.SubmitAnswer(context.Background())
	require.ErrorAs(t, err, &invalid, "second submission")
	require.ErrorAs(t, c.SelectOption("B"), &invalid, "selection after submission")

	got := c.Answers()
	require.Len(t, got, 1)
	assert.Equal(t, "C", got[0].Selected)
	assert.Equal(t, "A", got[0].QuestionID)
}

func TestNavigation(t *testing.T) {
	c := newController(t, testQuestions(3, 30), nil, Options{})
	require.NoError(t, c.Load(context.Background(), "m", ModePractice))

	require.NoError(t, c.PreviousQuestion())
	assert.Equal(t, 0, c.Snapshot().Index, "previous at first question is a no-op")

	answerCurrent(t, c, "B")
	require.NoError(t, c.NextQuestion(context.Background()))
	assert.Nil(t, c.Feedback(), "navigation clears feedback")
	v := c.Snapshot()
	assert.Equal(t, 1, v.Index)
	assert.False(t, v.Submitted)

	require.NoError(t, c.PreviousQuestion())
	v = c.Snapshot()
	assert.Equal(t, 0, v.Index)
	assert.True(t, v.Submitted)
	assert.Equal(t, "B", v.Selected)
	assert.Equal(t, 3, v.Total)
	assert.Equal(t, 1, v.Answered)

	require.NoError(t, c.NextQuestion(context.Background()))
	require.NoError(t, c.NextQuestion(context.Background()))
	assert.Equal(t, 2, c.Snapshot().Index)
	require.NoError(t, c.NextQuestion(context.Background()))
	assert.Equal(t, StateComplete, c.State(), "next past the last question finishes")
	assert.Equal(t, 1, c.RawScore().Correct)
}

func TestDismissFeedback(t *testing.T) {
	c := newController(t, testQuestions(1, 30), nil, Options{})
	require.NoError(t, c.Load(context.Background(), "m", ModePractice))
	answerCurrent(t, c, "B")
	require.NotNil(t, c.Feedback())
	c.DismissFeedback()
	assert.Nil(t, c.Feedback())
}

func TestPractice_BusyWhileFeedbackPending(t *testing.T) {
	gen := newGated()
	c := newController(t, testQuestions(2, 30), gen, Options{})
	require.NoError(t, c.Load(context.Background(), "m", ModePractice))
	require.NoError(t, c.SelectOption("B"))

	errc := make(chan error, 1)
	go func() {
		_, err := c.SubmitAnswer(context.Background())
		errc <- err
	}()

	require.Eventually(t, func() bool { return c.State() == StateFeedbackPending }, time.Second, time.Millisecond)
	assert.ErrorIs(t, c.NextQuestion(context.Background()), ErrBusy)
	assert.ErrorIs(t, c.PreviousQuestion(), ErrBusy)
	assert.ErrorIs(t, c.Finish(context.Background()), ErrBusy)
	assert.ErrorIs(t, c.SelectOption("A"), ErrBusy)

	close(gen.release)
	require.NoError(t, <-errc)
	assert.Equal(t, StateAnswering, c.State())
	assert.NotNil(t, c.Feedback())
	assert.Equal(t, 1, gen.explained)
}

func TestEvaluation_FinishPending(t *testing.T) {
	gen := newGated()
	c := newController(t, testQuestions(2, 30), gen, Options{})
	require.NoError(t, c.Load(context.Background(), "m", ModeEvaluation))
	answerCurrent(t, c, "B")

	errc := make(chan error, 1)
	go func() { errc <- c.Finish(context.Background()) }()

	require.Eventually(t, func() bool { return c.State() == StateEvaluationPending }, time.Second, time.Millisecond)
	assert.ErrorIs(t, c.Finish(context.Background()), ErrFinishPending)
	assert.ErrorIs(t, c.NextQuestion(context.Background()), ErrFinishPending)
	_, err := c.SubmitAnswer(context.Background())
	assert.ErrorIs(t, err, ErrFinishPending)
	c.Tick()

	close(gen.release)
	require.NoError(t, <-errc)
	assert.Equal(t, StateComplete, c.State())
	assert.Equal(t, 1, gen.evaluated, "exactly one consolidated evaluation")
	assert.Len(t, gen.lastEval.Answers, 1)
	assert.Len(t, gen.lastEval.Questions, 2)
}

func TestClose_CancelsPendingFeedback(t *testing.T) {
	gen := newGated()
	c := newController(t, testQuestions(2, 30), gen, Options{})
	require.NoError(t, c.Load(context.Background(), "m", ModePractice))
	require.NoError(t, c.SelectOption("B"))

	errc := make(chan error, 1)
	go func() {
		_, err := c.SubmitAnswer(context.Background())
		errc <- err
	}()
	require.Eventually(t, func() bool { return c.State() == StateFeedbackPending }, time.Second, time.Millisecond)

	c.Close()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("close did not cancel the in-flight call")
	}
	assert.ErrorIs(t, c.Load(context.Background(), "m", ModePractice), ErrClosed)
	assert.ErrorIs(t, c.SelectOption("A"), ErrClosed)
	assert.ErrorIs(t, c.Reset(), ErrClosed)
}

func TestReset_DropsStaleResult(t *testing.T) {
	gen := newGated()
	c := newController(t, testQuestions(2, 30), gen, Options{})
	require.NoError(t, c.Load(context.Background(), "m", ModeEvaluation))

	errc := make(chan error, 1)
	go func() { errc <- c.Finish(context.Background()) }()
	require.Eventually(t, func() bool { return c.State() == StateEvaluationPending }, time.Second, time.Millisecond)

	require.NoError(t, c.Reset())
	assert.Equal(t, StateLoading, c.State())
	close(gen.release)
	assert.ErrorIs(t, <-errc, ErrInvalidState)

	_, ok := c.Result()
	assert.False(t, ok)
	assert.Equal(t, StateLoading, c.State())

	require.NoError(t, c.Load(context.Background(), "m", ModePractice))
	assert.Equal(t, StateAnswering, c.State())
	assert.Equal(t, ModePractice, c.Snapshot().Mode)
}

func TestReset_CancelsInFlightCall(t *testing.T) {
	tests := map[string]struct {
		mode    Mode
		pending State
		start   func(c *Controller) error
	}{
		"evaluation": {ModeEvaluation, StateEvaluationPending, func(c *Controller) error {
			return c.Finish(context.Background())
		}},
		"practice": {ModePractice, StateFeedbackPending, func(c *Controller) error {
			if err := c.SelectOption("B"); err != nil {
				return err
			}
			_, err := c.SubmitAnswer(context.Background())
			return err
		}},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			// release is never closed: only cancellation unblocks the call
			gen := newGated()
			c := newController(t, testQuestions(2, 30), gen, Options{})
			require.NoError(t, c.Load(context.Background(), "m", tt.mode))

			errc := make(chan error, 1)
			go func() { errc <- tt.start(c) }()
			require.Eventually(t, func() bool { return c.State() == tt.pending }, time.Second, time.Millisecond)

			require.NoError(t, c.Reset())
			select {
			case err := <-errc:
				assert.ErrorIs(t, err, ErrInvalidState)
			case <-time.After(2 * time.Second):
				t.Fatal("feedback call still running after Reset")
			}
			assert.Equal(t, StateLoading, c.State())

			// a new session's call is not affected by the old one
			close(gen.release)
			require.NoError(t, c.Load(context.Background(), "m", ModeEvaluation))
			require.NoError(t, c.Finish(context.Background()))
			assert.Equal(t, StateComplete, c.State())
		})
	}
}

func TestFinishAndResetConcurrently(t *testing.T) {
	for i := 0; i < 50; i++ {
		sink := &progress.Memory{}
		c := newController(t, testQuestions(1, 30), nil, Options{Sink: sink})
		require.NoError(t, c.Load(context.Background(), "m", ModePractice))
		answerCurrent(t, c, "B")

		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); _ = c.Finish(context.Background()) }()
		go func() { defer wg.Done(); _ = c.Reset() }()
		wg.Wait()

		for _, rec := range sink.Records() {
			assert.Equal(t, "m", rec.ModuleID)
			assert.Equal(t, 100, rec.Score, "record reflects the finished session, not the reset")
		}
	}
}

func TestZeroEstimateGetsDefaultBudget(t *testing.T) {
	c := newController(t, testQuestions(2, 0), nil, Options{})
	require.NoError(t, c.Load(context.Background(), "m", ModeEvaluation))

	v := c.Snapshot()
	assert.Equal(t, 2*question.DefaultEstimatedSecs*time.Second, v.Budget)
	c.Tick()
	assert.Equal(t, StateAnswering, c.State())
}

func TestLoad_Errors(t *testing.T) {
	boom := errors.New("bank offline")
	c := New(question.BankFunc(func(context.Context, string, question.Kind) ([]question.Question, error) {
		return nil, boom
	}), nil, Options{ManualClock: true})
	t.Cleanup(c.Close)

	err := c.Load(context.Background(), "m", ModePractice)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "m", le.ModuleID)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateLoading, c.State(), "load errors are recoverable")

	empty := newController(t, nil, nil, Options{})
	err = empty.Load(context.Background(), "m", ModePractice)
	require.ErrorAs(t, err, &le)
	assert.ErrorIs(t, err, ErrNoQuestions)
}

func TestLoad_OnlyFromLoading(t *testing.T) {
	c := newController(t, testQuestions(1, 30), nil, Options{})
	require.NoError(t, c.Load(context.Background(), "m", ModePractice))
	assert.ErrorIs(t, c.Load(context.Background(), "m", ModePractice), ErrInvalidState)
}

func TestLoad_SnapshotIsShuffledCopy(t *testing.T) {
	qs := testQuestions(3, 30)
	c := newController(t, qs, nil, Options{
		Shuffle: func(s []question.Question) { s[0], s[2] = s[2], s[0] },
	})
	require.NoError(t, c.Load(context.Background(), "m", ModePractice))

	got := c.Questions()
	assert.Equal(t, []string{"C", "B", "A"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, "A", qs[0].ID, "bank slice untouched")
	assert.NotEmpty(t, c.Snapshot().SessionID)
}

func TestAnswerElapsed(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := newController(t, testQuestions(2, 30), nil, Options{Now: clock})
	require.NoError(t, c.Load(context.Background(), "m", ModeEvaluation))

	now = now.Add(20 * time.Second)
	answerCurrent(t, c, "B")
	require.NoError(t, c.NextQuestion(context.Background()))
	now = now.Add(7 * time.Second)
	answerCurrent(t, c, "A")

	got := c.AnswerMap()
	assert.Equal(t, 20*time.Second, got[0].Elapsed)
	assert.Equal(t, 7*time.Second, got[1].Elapsed)
}

func TestTimer_Goroutine(t *testing.T) {
	c := New(staticBank(testQuestions(1, 1)), nil, Options{
		Shuffle:      identity,
		TickInterval: 5 * time.Millisecond,
	})
	t.Cleanup(c.Close)
	require.NoError(t, c.Load(context.Background(), "m", ModeEvaluation))

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timer never expired")
	}
	assert.Equal(t, FinishReasonTimeExpired, c.Snapshot().FinishReason)
}

func TestPractice_TickIsNoop(t *testing.T) {
	c := newController(t, testQuestions(1, 1), nil, Options{})
	require.NoError(t, c.Load(context.Background(), "m", ModePractice))
	for i := 0; i < 5; i++ {
		c.Tick()
	}
	assert.Equal(t, StateAnswering, c.State())
	assert.Zero(t, c.Snapshot().Budget)
}

// Package session drives one module through a question-by-question
// assessment, in untimed practice or timed evaluation mode.
package session

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/examiz/internal/feedback"
	"github.com/abhisek/examiz/internal/progress"
	"github.com/abhisek/examiz/internal/question"
	"github.com/abhisek/examiz/internal/scoring"
)

// Feedback is the generator a controller delegates to. *feedback.Generator
// satisfies it.
type Feedback interface {
	Evaluate(ctx context.Context, in feedback.SessionInput) feedback.EvaluationResult
	Explain(ctx context.Context, in feedback.QuestionInput) feedback.QuestionFeedback
}

// Options configures a Controller. The zero value is usable.
type Options struct {
	// Shuffle reorders questions at load. Defaults to a uniform shuffle.
	Shuffle func([]question.Question)

	// Now defaults to time.Now.
	Now func() time.Time

	// TickInterval is the countdown period. Defaults to one second.
	TickInterval time.Duration

	// ManualClock disables the countdown goroutine; the caller drives
	// time through Tick.
	ManualClock bool

	// Sink receives one record per completed session. Optional.
	Sink progress.Sink

	// OnComplete runs after the session reaches StateComplete, outside
	// the controller lock.
	OnComplete func(*Controller)

	// ModuleName resolves display names. Defaults to question.ModuleName.
	ModuleName func(moduleID string) string
}

// Controller is the state machine of a single module session. All methods
// are safe for concurrent use.
type Controller struct {
	bank question.Bank
	gen  Feedback
	opts Options

	life     context.Context
	shutdown context.CancelFunc

	mu        sync.Mutex
	state     State
	sess      *Session
	epoch     int
	fetching  bool
	closed    bool
	stopTimer context.CancelFunc
	pending   context.CancelFunc
	visible   *feedback.QuestionFeedback
	raw       scoring.Score
	result    *feedback.EvaluationResult
	reason    FinishReason
	done      chan struct{}
}

// New creates a controller in StateLoading. gen may be nil, in which case
// template feedback is used.
func New(bank question.Bank, gen Feedback, opts Options) *Controller {
	if gen == nil {
		gen = feedback.New(nil, feedback.DefaultConfig())
	}
	if opts.Shuffle == nil {
		opts.Shuffle = func(qs []question.Question) {
			rand.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.ModuleName == nil {
		opts.ModuleName = question.ModuleName
	}

	life, shutdown := context.WithCancel(context.Background())
	return &Controller{
		bank:     bank,
		gen:      gen,
		opts:     opts,
		life:     life,
		shutdown: shutdown,
		state:    StateLoading,
		done:     make(chan struct{}),
	}
}

// bind returns a context cancelled when either ctx or the controller ends.
func (c *Controller) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// startCall must be called with the lock held. The returned context also
// ends when the session is reset.
func (c *Controller) startCall(ctx context.Context) (context.Context, context.CancelFunc) {
	callCtx, cancel := c.bind(ctx)
	c.pending = cancel
	return callCtx, cancel
}

// endCallLocked forgets the pending call unless a reset already did.
func (c *Controller) endCallLocked(epoch int) {
	if c.epoch == epoch {
		c.pending = nil
	}
}

func (c *Controller) setState(ev event) error {
	next, err := transition(c.state, ev)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// Load fetches, shuffles and snapshots the module's questions and starts
// the session at the first question. In evaluation mode the countdown
// starts with a budget equal to the sum of estimated times. Failures are
// *LoadError and leave the controller ready for another Load.
func (c *Controller) Load(ctx context.Context, moduleID string, mode Mode) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.fetching:
		c.mu.Unlock()
		return ErrBusy
	case c.state != StateLoading:
		c.mu.Unlock()
		return ErrInvalidState
	}
	c.fetching = true
	epoch := c.epoch
	c.mu.Unlock()

	fetchCtx, cancel := c.bind(ctx)
	qs, err := c.bank.FetchQuestions(fetchCtx, moduleID, mode.Kind())
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetching = false

	if c.closed {
		return ErrClosed
	}
	if c.epoch != epoch {
		return ErrInvalidState
	}
	if err != nil {
		slog.WarnContext(ctx, "question bank failed", "module", moduleID, "error", err)
		return &LoadError{ModuleID: moduleID, Err: err}
	}
	if len(qs) == 0 {
		return &LoadError{ModuleID: moduleID, Err: ErrNoQuestions}
	}

	snapshot := make([]question.Question, len(qs))
	copy(snapshot, qs)
	c.opts.Shuffle(snapshot)

	if err := c.setState(evLoaded); err != nil {
		return err
	}
	c.sess = newSession(uuid.NewString(), moduleID, mode, snapshot, c.opts.Now())
	c.visible = nil

	if mode == ModeEvaluation && !c.opts.ManualClock {
		c.startTimer()
	}

	slog.InfoContext(ctx, "session loaded",
		"session_id", c.sess.ID, "module", moduleID, "mode", string(mode),
		"questions", len(snapshot), "budget", c.sess.Budget)
	return nil
}

func (c *Controller) startTimer() {
	ctx, cancel := context.WithCancel(c.life)
	c.stopTimer = cancel
	epoch := c.epoch
	interval := c.opts.TickInterval

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.tick(epoch, interval)
			}
		}
	}()
}

// cancelTimer must be called with the lock held.
func (c *Controller) cancelTimer() {
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
}

// Tick advances the evaluation countdown by one second. It is a no-op in
// practice mode and once the session has left StateAnswering. Reaching
// zero finishes the session with FinishReasonTimeExpired.
func (c *Controller) Tick() {
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()
	c.tick(epoch, time.Second)
}

func (c *Controller) tick(epoch int, d time.Duration) {
	c.mu.Lock()
	if c.closed || c.epoch != epoch || c.state != StateAnswering || c.sess == nil || c.sess.Mode != ModeEvaluation {
		c.mu.Unlock()
		return
	}
	c.sess.Remaining -= d
	if c.sess.Remaining > 0 {
		c.mu.Unlock()
		return
	}
	c.sess.Remaining = 0
	c.mu.Unlock()

	if err := c.finish(c.life, FinishReasonTimeExpired); err != nil {
		slog.Debug("timer finish skipped", "reason", err)
	}
}

// SelectOption records a tentative choice for the current question.
func (c *Controller) SelectOption(letter string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.answeringLocked(); err != nil {
		return err
	}

	i := c.sess.current
	q := c.sess.Questions[i]
	letter = strings.ToUpper(strings.TrimSpace(letter))
	switch {
	case c.sess.answered(i):
		return &InvalidSubmissionError{Index: i, Reason: "already submitted"}
	case !q.HasOption(letter):
		return &InvalidSubmissionError{Index: i, Reason: "unknown option " + letter}
	}
	c.sess.selected[i] = letter
	return nil
}

// answeringLocked checks that navigation and answering are allowed.
func (c *Controller) answeringLocked() error {
	switch {
	case c.closed:
		return ErrClosed
	case c.state == StateFeedbackPending:
		return ErrBusy
	case c.state == StateEvaluationPending:
		return ErrFinishPending
	case c.state != StateAnswering:
		return ErrInvalidState
	}
	return nil
}

// SubmitAnswer commits the selected option for the current question. Each
// question accepts one submission. In practice mode it blocks for the
// explanation and returns it; in evaluation mode it returns nil feedback.
func (c *Controller) SubmitAnswer(ctx context.Context) (*feedback.QuestionFeedback, error) {
	c.mu.Lock()
	if err := c.answeringLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}

	i := c.sess.current
	letter, ok := c.sess.selected[i]
	if c.sess.answered(i) {
		c.mu.Unlock()
		return nil, &InvalidSubmissionError{Index: i, Reason: "already submitted"}
	}
	if !ok {
		c.mu.Unlock()
		return nil, &InvalidSubmissionError{Index: i, Reason: "no option selected"}
	}
	c.sess.record(i, letter, c.opts.Now())

	if c.sess.Mode == ModeEvaluation {
		c.mu.Unlock()
		return nil, nil
	}

	if err := c.setState(evPracticeSubmitted); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	in := feedback.QuestionInput{
		ModuleName: c.opts.ModuleName(c.sess.ModuleID),
		Question:   c.sess.Questions[i],
		Selected:   letter,
	}
	epoch := c.epoch
	callCtx, cancel := c.startCall(ctx)
	c.mu.Unlock()

	fb := c.gen.Explain(callCtx, in)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.endCallLocked(epoch)
	if c.closed {
		return nil, ErrClosed
	}
	if c.epoch != epoch {
		return nil, ErrInvalidState
	}
	if err := c.setState(evFeedbackResolved); err != nil {
		return nil, err
	}
	c.visible = &fb
	return &fb, nil
}

// Feedback returns the practice explanation currently shown, if any.
func (c *Controller) Feedback() *feedback.QuestionFeedback {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

// DismissFeedback hides the current explanation.
func (c *Controller) DismissFeedback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible = nil
}

// NextQuestion advances to the next question. Moving past the last one
// finishes the session.
func (c *Controller) NextQuestion(ctx context.Context) error {
	c.mu.Lock()
	if err := c.answeringLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.visible = nil
	if next := c.sess.current + 1; next < len(c.sess.Questions) {
		c.sess.visit(next, c.opts.Now())
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.finish(ctx, FinishReasonCompleted)
}

// PreviousQuestion moves back one question for review. It does nothing at
// the first question.
func (c *Controller) PreviousQuestion() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.answeringLocked(); err != nil {
		return err
	}
	c.visible = nil
	if c.sess.current > 0 {
		c.sess.visit(c.sess.current-1, c.opts.Now())
	}
	return nil
}

// Finish ends the session. Practice sessions complete immediately;
// evaluation sessions block for the consolidated feedback. Calling Finish
// on a completed session is a no-op.
func (c *Controller) Finish(ctx context.Context) error {
	return c.finish(ctx, FinishReasonCompleted)
}

func (c *Controller) finish(ctx context.Context, reason FinishReason) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.state == StateComplete:
		c.mu.Unlock()
		return nil
	case c.state == StateEvaluationPending:
		c.mu.Unlock()
		return ErrFinishPending
	case c.state == StateFeedbackPending:
		c.mu.Unlock()
		return ErrBusy
	case c.state != StateAnswering:
		c.mu.Unlock()
		return ErrInvalidState
	}

	c.cancelTimer()
	c.reason = reason
	c.visible = nil
	sess := c.sess
	c.raw = scoring.Grade(sess.Questions, sess.answers)

	if sess.Mode == ModePractice {
		if err := c.setState(evPracticeFinished); err != nil {
			c.mu.Unlock()
			return err
		}
		done := c.completionLocked()
		c.mu.Unlock()
		c.completed(ctx, done)
		return nil
	}

	if err := c.setState(evEvaluationFinished); err != nil {
		c.mu.Unlock()
		return err
	}
	in := feedback.SessionInput{
		ModuleID:   sess.ModuleID,
		ModuleName: c.opts.ModuleName(sess.ModuleID),
		Questions:  sess.Questions,
		Answers:    sess.answerMap(),
		TimeSpent:  c.opts.Now().Sub(sess.StartedAt),
	}
	epoch := c.epoch
	callCtx, cancel := c.startCall(ctx)
	c.mu.Unlock()

	res := c.gen.Evaluate(callCtx, in)
	cancel()

	c.mu.Lock()
	c.endCallLocked(epoch)
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.epoch != epoch {
		c.mu.Unlock()
		return ErrInvalidState
	}
	if err := c.setState(evEvaluated); err != nil {
		c.mu.Unlock()
		return err
	}
	c.result = &res
	done := c.completionLocked()
	c.mu.Unlock()

	c.completed(ctx, done)
	return nil
}

// completion is what a finished session hands to its side effects.
type completion struct {
	sess   *Session
	raw    scoring.Score
	result *feedback.EvaluationResult
	reason FinishReason
	done   chan struct{}
}

// completionLocked must be called with the lock held.
func (c *Controller) completionLocked() completion {
	return completion{sess: c.sess, raw: c.raw, result: c.result, reason: c.reason, done: c.done}
}

// completed runs the post-completion side effects outside the lock.
func (c *Controller) completed(ctx context.Context, done completion) {
	sess, raw := done.sess, done.raw
	rec := progress.Record{
		ModuleID:   sess.ModuleID,
		Kind:       sess.Mode.Kind(),
		Score:      scoring.ScaleToExternal(raw.Percentage, scoring.ScalePremium),
		Percentage: raw.Percentage,
		Timestamp:  c.opts.Now(),
	}
	if done.result != nil {
		rec.Score = done.result.Score
	}

	close(done.done)

	slog.InfoContext(ctx, "session complete",
		"session_id", sess.ID, "module", sess.ModuleID, "mode", string(sess.Mode),
		"reason", string(done.reason), "correct", raw.Correct, "total", raw.Total)

	if c.opts.Sink != nil {
		if err := c.opts.Sink.Record(context.WithoutCancel(ctx), rec); err != nil {
			slog.WarnContext(ctx, "failed to record progress", "record", rec.Fields(), "error", err)
		}
	}
	if c.opts.OnComplete != nil {
		c.opts.OnComplete(c)
	}
}

// Reset discards the session and returns to StateLoading so Load can be
// called again. A feedback call still in flight is cancelled and its
// result dropped.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.cancelTimer()
	if err := c.setState(evReset); err != nil {
		return err
	}
	if c.pending != nil {
		c.pending()
		c.pending = nil
	}
	c.epoch++
	c.sess = nil
	c.visible = nil
	c.result = nil
	c.raw = scoring.Score{}
	c.reason = ""
	c.done = make(chan struct{})
	return nil
}

// Close cancels the timer and any in-flight feedback call. Every later
// call returns ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancelTimer()
	c.mu.Unlock()
	c.shutdown()
}

// Done is closed when the current session reaches StateComplete.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Result returns the evaluation result once an evaluation session is
// complete.
func (c *Controller) Result() (feedback.EvaluationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return feedback.EvaluationResult{}, false
	}
	return *c.result, true
}

// RawScore returns the score computed at finish. It is zero before.
func (c *Controller) RawScore() scoring.Score {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.raw
}

// Answers returns the submitted answers in submission order.
func (c *Controller) Answers() []question.Answer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	return c.sess.inOrder()
}

// Questions returns the session's question snapshot in display order.
func (c *Controller) Questions() []question.Question {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	return append([]question.Question(nil), c.sess.Questions...)
}

// AnswerMap returns the submitted answers keyed by display position.
func (c *Controller) AnswerMap() map[int]question.Answer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	return c.sess.answerMap()
}

// View is a read-only picture of the controller for rendering.
type View struct {
	SessionID string
	ModuleID  string
	Mode      Mode
	State     State

	Index    int
	Total    int
	Question question.Question
	Selected string
	Answered int

	// Submitted reports whether the current question has an answer.
	Submitted bool
	Feedback  *feedback.QuestionFeedback

	Budget    time.Duration
	Remaining time.Duration

	FinishReason FinishReason
}

// Snapshot returns the current View. Before Load only State is set.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{State: c.state, FinishReason: c.reason, Feedback: c.visible}
	s := c.sess
	if s == nil {
		return v
	}
	v.SessionID = s.ID
	v.ModuleID = s.ModuleID
	v.Mode = s.Mode
	v.Index = s.current
	v.Total = len(s.Questions)
	v.Question = s.Questions[s.current]
	v.Selected = s.selected[s.current]
	v.Submitted = s.answered(s.current)
	v.Answered = len(s.answers)
	v.Budget = s.Budget
	v.Remaining = s.Remaining
	return v
}

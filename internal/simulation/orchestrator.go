// Package simulation sequences a full mock exam: one timed evaluation
// session per module with breaks in between, then a single consolidated
// result.
package simulation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/examiz/internal/feedback"
	"github.com/abhisek/examiz/internal/question"
	"github.com/abhisek/examiz/internal/session"
)

const (
	DefaultBreak    = 15 * time.Minute
	DefaultMinBreak = 5 * time.Minute
)

// Options configures an Orchestrator. The zero value runs the five default
// modules with a 15 minute break.
type Options struct {
	// Modules are run in order. Defaults to question.DefaultModuleIDs.
	Modules []string

	Break    time.Duration
	MinBreak time.Duration

	// TickInterval is the break countdown period. Defaults to one second.
	TickInterval time.Duration

	// ManualClock disables every countdown goroutine, including those of
	// the child sessions. The caller drives time through Tick.
	ManualClock bool

	// Session is the template for child controllers. Its OnComplete and
	// ManualClock fields are overwritten.
	Session session.Options

	// OnPhase is called after every phase change, outside the lock.
	OnPhase func(Phase)
}

// Orchestrator runs one simulation at a time. It is the only writer of
// simulation state; child sessions report back through their completion
// hook. All methods are safe for concurrent use.
type Orchestrator struct {
	bank question.Bank
	gen  session.Feedback
	opts Options

	life     context.Context
	shutdown context.CancelFunc

	mu         sync.Mutex
	phase      Phase
	id         string
	index      int
	current    *session.Controller
	sessions   []SessionResult
	breakLeft  time.Duration
	breakSpent time.Duration
	stopTimer  context.CancelFunc
	pending    context.CancelFunc
	result     *Result
	epoch      int
	closed     bool
	done       chan struct{}
}

// New creates an orchestrator in PhaseInstructions. gen may be nil, in
// which case template feedback is used.
func New(bank question.Bank, gen session.Feedback, opts Options) *Orchestrator {
	if gen == nil {
		gen = feedback.New(nil, feedback.DefaultConfig())
	}
	if len(opts.Modules) == 0 {
		opts.Modules = question.DefaultModuleIDs()
	}
	if opts.Break <= 0 {
		opts.Break = DefaultBreak
	}
	if opts.MinBreak <= 0 {
		opts.MinBreak = DefaultMinBreak
	}
	if opts.MinBreak > opts.Break {
		opts.MinBreak = opts.Break
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.Session.ModuleName == nil {
		opts.Session.ModuleName = question.ModuleName
	}
	opts.Session.ManualClock = opts.ManualClock

	life, shutdown := context.WithCancel(context.Background())
	return &Orchestrator{
		bank:     bank,
		gen:      gen,
		opts:     opts,
		life:     life,
		shutdown: shutdown,
		phase:    PhaseInstructions,
		done:     make(chan struct{}),
	}
}

// Start begins the first session. A load failure returns the
// *session.LoadError and leaves the orchestrator in PhaseInstructions.
func (o *Orchestrator) Start(ctx context.Context) error {
	return o.startSession(ctx, PhaseInstructions)
}

// startSession moves from phase from into PhaseSessionActive and loads the
// session at o.index. On failure the phase falls back to from.
func (o *Orchestrator) startSession(ctx context.Context, from Phase) error {
	o.mu.Lock()
	switch {
	case o.closed:
		o.mu.Unlock()
		return ErrClosed
	case o.phase != from:
		p := o.phase
		o.mu.Unlock()
		return wrongPhase("start session", p)
	}
	if from == PhaseInstructions {
		o.id = uuid.NewString()
		o.index = 0
		o.sessions = nil
	}
	o.cancelTimer()
	epoch := o.epoch
	idx := o.index
	moduleID := o.opts.Modules[idx]
	simID := o.id

	opts := o.opts.Session
	opts.OnComplete = func(c *session.Controller) { o.sessionComplete(ctx, epoch, idx, c) }
	c := session.New(o.bank, o.gen, opts)
	o.current = c
	o.phase = PhaseSessionActive
	o.mu.Unlock()
	o.notify(PhaseSessionActive)

	if err := c.Load(ctx, moduleID, session.ModeEvaluation); err != nil {
		c.Close()
		o.mu.Lock()
		reverted := o.epoch == epoch && o.current == c
		if reverted {
			o.current = nil
			o.phase = from
		}
		o.mu.Unlock()
		if reverted {
			o.notify(from)
		}
		return err
	}

	slog.InfoContext(ctx, "simulation session started",
		"simulation_id", simID, "module", moduleID, "session", idx+1, "of", len(o.opts.Modules))
	return nil
}

// sessionComplete is the child completion hook. Stale hooks from a
// retried or closed simulation are ignored.
func (o *Orchestrator) sessionComplete(ctx context.Context, epoch, idx int, c *session.Controller) {
	eval, _ := c.Result()
	sr := SessionResult{
		ModuleID:   eval.ModuleID,
		ModuleName: eval.ModuleName,
		Score:      c.RawScore(),
		Evaluation: eval,
		questions:  c.Questions(),
		answers:    c.AnswerMap(),
	}

	o.mu.Lock()
	if o.closed || o.epoch != epoch || o.index != idx || o.phase != PhaseSessionActive {
		o.mu.Unlock()
		return
	}
	o.sessions = append(o.sessions, sr)
	o.current = nil

	if idx+1 < len(o.opts.Modules) {
		o.index++
		o.phase = PhaseBreak
		o.breakLeft = o.opts.Break
		o.breakSpent = 0
		if !o.opts.ManualClock {
			o.startBreakTimer()
		}
		o.mu.Unlock()
		o.notify(PhaseBreak)
		return
	}

	o.phase = PhaseResultsPending
	res := aggregate(o.id, append([]SessionResult(nil), o.sessions...))
	callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(o.life, cancel)
	o.pending = cancel
	o.mu.Unlock()
	o.notify(PhaseResultsPending)

	o.finalize(callCtx, epoch, res)
	stop()
	cancel()
}

// finalize makes the one consolidated feedback call. ctx ends on Retry
// and Close, not when the caller's context does.
func (o *Orchestrator) finalize(ctx context.Context, epoch int, res Result) {
	res.Feedback = o.gen.Evaluate(ctx, consolidatedInput(res))

	o.mu.Lock()
	if o.epoch == epoch {
		o.pending = nil
	}
	if o.closed || o.epoch != epoch || o.phase != PhaseResultsPending {
		o.mu.Unlock()
		return
	}
	o.result = &res
	o.phase = PhaseResultsReady
	done := o.done
	o.mu.Unlock()

	close(done)
	slog.InfoContext(ctx, "simulation complete",
		"simulation_id", res.ID, "score", res.Score, "level", res.Level,
		"correct", res.Total.Correct, "total", res.Total.Total)
	o.notify(PhaseResultsReady)
}

func (o *Orchestrator) startBreakTimer() {
	ctx, cancel := context.WithCancel(o.life)
	o.stopTimer = cancel
	epoch := o.epoch
	interval := o.opts.TickInterval

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				o.tickBreak(epoch, interval)
			}
		}
	}()
}

func (o *Orchestrator) cancelTimer() {
	if o.stopTimer != nil {
		o.stopTimer()
		o.stopTimer = nil
	}
}

// Tick advances time by one second: the break countdown during a break,
// the active session's countdown otherwise.
func (o *Orchestrator) Tick() {
	o.mu.Lock()
	phase, epoch, c := o.phase, o.epoch, o.current
	o.mu.Unlock()

	switch {
	case phase == PhaseBreak:
		o.tickBreak(epoch, time.Second)
	case phase == PhaseSessionActive && c != nil:
		c.Tick()
	}
}

func (o *Orchestrator) tickBreak(epoch int, d time.Duration) {
	o.mu.Lock()
	if o.closed || o.epoch != epoch || o.phase != PhaseBreak {
		o.mu.Unlock()
		return
	}
	o.breakSpent += d
	o.breakLeft -= d
	if o.breakLeft > 0 {
		o.mu.Unlock()
		return
	}
	o.breakLeft = 0
	o.mu.Unlock()

	if err := o.startSession(o.life, PhaseBreak); err != nil {
		slog.Warn("next simulation session failed to load", "error", err)
	}
}

// EndBreak starts the next session early. It is refused until the minimum
// break has elapsed.
func (o *Orchestrator) EndBreak(ctx context.Context) error {
	o.mu.Lock()
	switch {
	case o.closed:
		o.mu.Unlock()
		return ErrClosed
	case o.phase != PhaseBreak:
		p := o.phase
		o.mu.Unlock()
		return wrongPhase("end break", p)
	case o.breakSpent < o.opts.MinBreak:
		o.mu.Unlock()
		return ErrBreakTooEarly
	}
	o.mu.Unlock()

	return o.startSession(ctx, PhaseBreak)
}

// Retry discards the simulation and returns to PhaseInstructions. The
// active session or a pending consolidated call is cancelled.
func (o *Orchestrator) Retry() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	o.cancelTimer()
	if o.pending != nil {
		o.pending()
		o.pending = nil
	}
	o.epoch++
	c := o.current
	o.current = nil
	o.phase = PhaseInstructions
	o.id = ""
	o.index = 0
	o.sessions = nil
	o.result = nil
	o.breakLeft, o.breakSpent = 0, 0
	o.done = make(chan struct{})
	o.mu.Unlock()

	if c != nil {
		c.Close()
	}
	o.notify(PhaseInstructions)
	return nil
}

// Close stops every timer and in-flight call, including the active
// session's.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.cancelTimer()
	c := o.current
	o.current = nil
	o.mu.Unlock()

	if c != nil {
		c.Close()
	}
	o.shutdown()
}

func (o *Orchestrator) notify(p Phase) {
	if o.opts.OnPhase != nil {
		o.opts.OnPhase(p)
	}
}

// Phase returns the current phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Current returns the active session controller, or nil outside
// PhaseSessionActive.
func (o *Orchestrator) Current() *session.Controller {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Done is closed when results are ready.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done
}

// Result returns the final result once PhaseResultsReady is reached.
func (o *Orchestrator) Result() (Result, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.result == nil {
		return Result{}, false
	}
	return *o.result, true
}

// Progress describes where the simulation stands.
type Progress struct {
	ID        string
	Phase     Phase
	Index     int
	Sessions  int
	Completed int
	ModuleID  string

	BreakRemaining time.Duration
	BreakElapsed   time.Duration
	MinBreak       time.Duration
	CanEndBreak    bool
}

// Progress returns the current Progress.
func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Progress{
		ID:             o.id,
		Phase:          o.phase,
		Index:          o.index,
		Sessions:       len(o.opts.Modules),
		Completed:      len(o.sessions),
		ModuleID:       o.opts.Modules[o.index],
		BreakRemaining: o.breakLeft,
		BreakElapsed:   o.breakSpent,
		MinBreak:       o.opts.MinBreak,
		CanEndBreak:    o.phase == PhaseBreak && o.breakSpent >= o.opts.MinBreak,
	}
}

package session

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/claude/pushreps/internal/models"
)

// ErrInvalidTransition is returned for a call the current phase does not allow.
// The engine state is unchanged when it is returned.
var ErrInvalidTransition = errors.New("invalid transition")

// Phase is the state-machine position of a workout attempt.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseActive   Phase = "active"
	PhaseResting  Phase = "resting"
	PhaseComplete Phase = "complete"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Options configures an Engine.
type Options struct {
	Clock Clock
	// TickInterval is the rest countdown cadence. Zero disables the
	// background timer and rest only advances through Tick.
	TickInterval time.Duration
	Log          *slog.Logger
}

// State is a point-in-time copy of a workout attempt.
type State struct {
	Plan                 models.Plan `json:"plan"`
	Phase                Phase       `json:"phase"`
	CurrentSet           int         `json:"current_set"`
	CurrentRepCount      int         `json:"current_rep_count"`
	TotalRepsCompleted   int         `json:"total_reps_completed"`
	RemainingRestSeconds int         `json:"remaining_rest_seconds"`
	Paused               bool        `json:"paused"`
	StartedAt            time.Time   `json:"started_at,omitzero"`
}

// ProgressPercent is the share of the plan's reps done, rounded.
func (s State) ProgressPercent() int {
	target := s.Plan.TargetReps()
	if target == 0 {
		return 0
	}
	done := (s.CurrentSet-1)*s.Plan.RepsPerSet + s.CurrentRepCount
	return int(math.Round(float64(done) / float64(target) * 100))
}

// RestClock formats the remaining rest as m:ss.
func (s State) RestClock() string {
	return fmt.Sprintf("%d:%02d", s.RemainingRestSeconds/60, s.RemainingRestSeconds%60)
}

// Engine runs one workout attempt at a time through the
// idle -> active -> resting -> ... -> complete state machine.
// All methods are safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	clock    Clock
	interval time.Duration
	log      *slog.Logger

	state   State
	timer   *restTimer
	retired []*restTimer
}

// NewEngine creates an idle engine for plan.
func NewEngine(plan models.Plan, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Log == nil {
		opts.Log = slog.New(slog.DiscardHandler)
	}
	e := &Engine{
		clock:    opts.Clock,
		interval: opts.TickInterval,
		log:      opts.Log,
	}
	e.resetLocked(plan)
	return e
}

// State returns a snapshot of the current attempt.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SelectPlan switches plans. Allowed only before the first rep.
func (e *Engine) SelectPlan(id models.PlanID) error {
	plan, err := models.LookupPlan(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state.Phase {
	case PhaseIdle:
	case PhaseActive:
		if e.state.TotalRepsCompleted > 0 {
			return fmt.Errorf("%w: plan is fixed once reps are recorded", ErrInvalidTransition)
		}
	default:
		return fmt.Errorf("%w: cannot select plan while %s", ErrInvalidTransition, e.state.Phase)
	}

	e.resetLocked(plan)
	e.log.Debug("plan selected", "plan", plan.ID)
	return nil
}

// Start moves an idle attempt to active.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state.Phase {
	case PhaseIdle:
		e.startLocked()
		return nil
	case PhaseActive:
		return nil
	default:
		return fmt.Errorf("%w: cannot start while %s", ErrInvalidTransition, e.state.Phase)
	}
}

// CompleteRep counts one rep of the current set. Reps beyond the set
// target are ignored.
func (e *Engine) CompleteRep() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state.Phase {
	case PhaseIdle:
		e.startLocked()
	case PhaseActive:
	default:
		return fmt.Errorf("%w: cannot complete rep while %s", ErrInvalidTransition, e.state.Phase)
	}

	if e.state.CurrentRepCount >= e.state.Plan.RepsPerSet {
		return nil
	}
	e.state.CurrentRepCount++
	e.state.TotalRepsCompleted++
	return nil
}

// CompleteSet finishes the current set. On the last set it returns the
// finished session record; otherwise the record is nil and the engine
// rests (or goes straight to the next set when the plan has no rest).
func (e *Engine) CompleteSet() (*models.SessionRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Phase != PhaseActive {
		return nil, fmt.Errorf("%w: cannot complete set while %s", ErrInvalidTransition, e.state.Phase)
	}
	if e.state.CurrentRepCount < e.state.Plan.RepsPerSet {
		return nil, fmt.Errorf("%w: set %d has %d of %d reps", ErrInvalidTransition,
			e.state.CurrentSet, e.state.CurrentRepCount, e.state.Plan.RepsPerSet)
	}

	if e.state.CurrentSet < e.state.Plan.Sets {
		e.state.CurrentSet++
		e.state.CurrentRepCount = 0
		e.state.RemainingRestSeconds = e.state.Plan.RestSeconds
		e.state.Paused = false
		if e.state.RemainingRestSeconds == 0 {
			e.state.Phase = PhaseActive
			return nil, nil
		}
		e.state.Phase = PhaseResting
		if e.interval > 0 {
			e.timer = startRestTimer(e.interval, e.timerTick)
		}
		e.log.Debug("resting", "next_set", e.state.CurrentSet, "rest_seconds", e.state.RemainingRestSeconds)
		return nil, nil
	}

	now := e.clock.Now()
	rec, err := models.NewSessionRecord(e.state.Plan, e.state.TotalRepsCompleted, now.Sub(e.state.StartedAt), now)
	if err != nil {
		return nil, err
	}
	e.state.Phase = PhaseComplete
	e.log.Info("workout complete", "plan", rec.PlanID, "reps", rec.TotalReps, "duration_ms", rec.DurationMillis)
	return &rec, nil
}

// Tick advances the rest countdown by one second. It does nothing unless
// the engine is resting and not paused.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickLocked()
}

// Pause freezes the rest countdown. No effect outside of rest.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Phase == PhaseResting {
		e.state.Paused = true
	}
}

// Resume unfreezes the rest countdown. No effect outside of rest.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Phase == PhaseResting {
		e.state.Paused = false
	}
}

// Reset abandons the attempt and returns to idle on the same plan.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked(e.state.Plan)
}

// Close stops the rest timer and waits for its goroutine to exit.
func (e *Engine) Close() {
	e.mu.Lock()
	e.stopTimerLocked()
	retired := e.retired
	e.retired = nil
	e.mu.Unlock()

	for _, t := range retired {
		t.wait()
	}
}

func (e *Engine) timerTick(t *restTimer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != t {
		return
	}
	e.tickLocked()
}

func (e *Engine) tickLocked() {
	if e.state.Phase != PhaseResting || e.state.Paused {
		return
	}
	if e.state.RemainingRestSeconds > 0 {
		e.state.RemainingRestSeconds--
	}
	if e.state.RemainingRestSeconds == 0 {
		e.state.Phase = PhaseActive
		e.stopTimerLocked()
		e.log.Debug("rest over", "set", e.state.CurrentSet)
	}
}

func (e *Engine) resetLocked(plan models.Plan) {
	e.stopTimerLocked()
	e.state = State{
		Plan:       plan,
		Phase:      PhaseIdle,
		CurrentSet: 1,
	}
}

// startLocked begins the attempt. Duration is measured from here, not from
// when the engine went idle.
func (e *Engine) startLocked() {
	e.state.Phase = PhaseActive
	e.state.StartedAt = e.clock.Now()
}

// stopTimerLocked cancels the active timer. The goroutine is remembered so
// Close can wait for it.
func (e *Engine) stopTimerLocked() {
	if e.timer == nil {
		return
	}
	e.timer.cancel()
	live := e.retired[:0]
	for _, t := range e.retired {
		select {
		case <-t.done:
		default:
			live = append(live, t)
		}
	}
	e.retired = append(live, e.timer)
	e.timer = nil
}

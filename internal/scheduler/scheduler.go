package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultStagnationLimit = 200

var (
	ErrNotInTask    = errors.New("attempted to use task.wait outside of a running task")
	ErrNotYieldable = errors.New("attempt to task.wait across a native call")
	ErrYielded      = errors.New("function yielded instead of returning")
	ErrStagnated    = errors.New("scheduler made no progress")
)

// ErrorHandler is told about every task that ends with a script error.
type ErrorHandler func(t *Task, err error)

// Scheduler runs script coroutines cooperatively. Everything happens on
// the caller's goroutine: tasks only suspend inside task.wait and are
// resumed by Step, at most once per call.
type Scheduler struct {
	L      *lua.LState
	clock  Clock
	logger *slog.Logger
	tracer trace.Tracer

	tasks    []*Task
	byThread map[*lua.LState]*Task
	detached map[*lua.LState]bool
	nextID   uint64
	stepping bool

	stagnationLimit int
	onError         ErrorHandler
}

type Option func(*Scheduler)

func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStagnationLimit sets how many consecutive steps RunToIdle tolerates
// without the number of live tasks changing.
func WithStagnationLimit(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.stagnationLimit = n
		}
	}
}

func WithErrorHandler(h ErrorHandler) Option {
	return func(s *Scheduler) { s.onError = h }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Scheduler) {
		if t != nil {
			s.tracer = t
		}
	}
}

func New(L *lua.LState, opts ...Option) *Scheduler {
	s := &Scheduler{
		L:               L,
		clock:           NewWallClock(),
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:          otel.Tracer("blockengine/scheduler"),
		byThread:        make(map[*lua.LState]*Task),
		detached:        make(map[*lua.LState]bool),
		stagnationLimit: DefaultStagnationLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Clock() Clock {
	return s.clock
}

func (s *Scheduler) newTask(fn *lua.LFunction, label string, args []lua.LValue) *Task {
	th, cancel := s.L.NewThread()
	s.nextID++
	now := s.clock.Now()
	t := &Task{
		ID:             s.nextID,
		Label:          label,
		WakeTime:       now,
		SleepStartTime: now,
		thread:         th,
		cancel:         cancel,
		fn:             fn,
		args:           args,
	}
	s.tasks = append(s.tasks, t)
	s.byThread[th] = t
	return t
}

// Spawn schedules fn as a new task. It does not run until the next Step,
// which passes it args.
func (s *Scheduler) Spawn(fn *lua.LFunction, label string, args ...lua.LValue) *Task {
	return s.newTask(fn, label, args)
}

// Delay schedules fn to start once delay seconds have passed.
func (s *Scheduler) Delay(delay float64, fn *lua.LFunction, label string, args ...lua.LValue) *Task {
	t := s.newTask(fn, label, args)
	t.WakeTime += sanitize(delay)
	return t
}

// Run starts fn as a task right away, from whichever coroutine is running.
// If it waits, Step picks it up later like any other task. Signal
// handlers written in script go through Run so that they may wait.
func (s *Scheduler) Run(fn *lua.LFunction, label string, args ...lua.LValue) *Task {
	t := s.newTask(fn, label, args)
	s.resume(context.Background(), t, nil)
	return t
}

// Wait suspends the task running on L for the given number of seconds. It
// must be the return value of the Go function implementing task.wait.
//
// L may be the task's own coroutine or one it resumed, such as the body of
// a pcall; the yield is then passed up through each of them. Waiting from
// under a native call, where gopher-lua would unwind that call as if it had
// returned, raises ErrNotYieldable instead.
func (s *Scheduler) Wait(L *lua.LState, seconds float64) int {
	t, err := s.waiter(L)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	now := s.clock.Now()
	t.SleepStartTime = now
	t.WakeTime = now + sanitize(seconds)
	return L.Yield()
}

func (s *Scheduler) waiter(L *lua.LState) (*Task, error) {
	for th := L; th != nil; th = th.Parent {
		if s.detached[th] || callsNative(th) {
			return nil, ErrNotYieldable
		}
		if t, ok := s.byThread[th]; ok {
			if t.Finished {
				break
			}
			return t, nil
		}
	}
	return nil, ErrNotInTask
}

// callsNative reports whether a Go function sits anywhere on th's stack
// below the function th is currently in.
func callsNative(th *lua.LState) bool {
	for level := 1; ; level++ {
		dbg, ok := th.GetStack(level)
		if !ok {
			return false
		}
		if _, err := th.GetInfo("S", dbg, lua.LNil); err != nil || dbg.What == "main" {
			return false
		}
		if dbg.What == "G" {
			return true
		}
	}
}

func sanitize(seconds float64) float64 {
	if math.IsNaN(seconds) || seconds < 0 {
		return 0
	}
	return seconds
}

// Current returns the task whose coroutine is executing, or nil.
func (s *Scheduler) Current() *Task {
	for th := s.L.G.CurrentThread; th != nil; th = th.Parent {
		if t, ok := s.byThread[th]; ok {
			return t
		}
	}
	return nil
}

// Call runs fn to completion on a coroutine of its own that belongs to no
// task, from L. task.wait inside it raises ErrNotYieldable, and ErrYielded
// is returned if it suspends any other way.
func (s *Scheduler) Call(L *lua.LState, fn *lua.LFunction, args ...lua.LValue) ([]lua.LValue, error) {
	th, cancel := L.NewThread()
	if cancel != nil {
		defer cancel()
	}
	s.detached[th] = true
	defer delete(s.detached, th)

	state, err, rets := L.Resume(th, fn, args...)
	switch state {
	case lua.ResumeError:
		return nil, err
	case lua.ResumeYield:
		return nil, ErrYielded
	}
	return rets, nil
}

func (s *Scheduler) resume(ctx context.Context, t *Task, args []lua.LValue) {
	_, span := s.tracer.Start(ctx, "task.resume", trace.WithAttributes(
		attribute.Int64("task.id", int64(t.ID)),
		attribute.String("task.label", t.Label),
	))
	defer span.End()

	var fn *lua.LFunction
	if !t.started {
		t.started = true
		fn = t.fn
		args = t.args
		t.args = nil
	}

	resumer := s.L.G.CurrentThread
	if resumer == nil {
		resumer = s.L
	}
	state, err, _ := resumer.Resume(t.thread, fn, args...)
	switch state {
	case lua.ResumeYield:
		return
	case lua.ResumeError:
		t.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("task failed", "task", t.ID, "label", t.Label, "err", err)
		if s.onError != nil {
			s.onError(t, err)
		}
	}
	t.finish()
	delete(s.byThread, t.thread)
}

// Step resumes every task present when it starts whose wake time has come,
// in insertion order, passing each the seconds elapsed since it suspended.
// Tasks created during the step first run on the next one. A nested call
// from inside a task is ignored.
func (s *Scheduler) Step() {
	if s.stepping {
		s.logger.Warn("scheduler step re-entered, ignoring")
		return
	}
	s.stepping = true
	defer func() { s.stepping = false }()

	ctx, span := s.tracer.Start(context.Background(), "scheduler.Step")
	defer span.End()

	now := s.clock.Now()
	n := len(s.tasks)
	resumed := 0
	for i := 0; i < n; i++ {
		t := s.tasks[i]
		if t.Finished || t.WakeTime > now {
			continue
		}
		resumed++
		s.resume(ctx, t, []lua.LValue{lua.LNumber(now - t.SleepStartTime)})
	}
	s.purge()
	span.SetAttributes(attribute.Int("tasks.resumed", resumed), attribute.Int("tasks.live", len(s.tasks)))
}

func (s *Scheduler) purge() {
	s.tasks = slices.DeleteFunc(s.tasks, func(t *Task) bool { return t.Finished })
}

// Live returns the number of tasks that have not finished.
func (s *Scheduler) Live() int {
	n := 0
	for _, t := range s.tasks {
		if !t.Finished {
			n++
		}
	}
	return n
}

// Tasks returns the live tasks in scheduling order.
func (s *Scheduler) Tasks() []*Task {
	var out []*Task
	for _, t := range s.tasks {
		if !t.Finished {
			out = append(out, t)
		}
	}
	return out
}

// NextWake returns the earliest wake time of any live task.
func (s *Scheduler) NextWake() (float64, bool) {
	best, ok := math.Inf(1), false
	for _, t := range s.tasks {
		if !t.Finished && t.WakeTime < best {
			best, ok = t.WakeTime, true
		}
	}
	return best, ok
}

type advancer interface {
	AdvanceTo(t float64)
}

// RunToIdle steps until no task is left. When nothing is due it moves a
// virtual clock straight to the next wake time, or sleeps until then on
// any other clock. It gives up with ErrStagnated once the number of live
// tasks has stayed the same for the stagnation limit's worth of steps.
func (s *Scheduler) RunToIdle(ctx context.Context) error {
	last, stagnant := -1, 0
	for {
		live := s.Live()
		if live == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if live == last {
			stagnant++
			if stagnant >= s.stagnationLimit {
				return fmt.Errorf("%w: %d tasks still pending after %d steps", ErrStagnated, live, stagnant)
			}
		} else {
			last, stagnant = live, 0
		}

		if err := s.waitForWake(ctx); err != nil {
			return err
		}
		s.Step()
	}
}

func (s *Scheduler) waitForWake(ctx context.Context) error {
	next, ok := s.NextWake()
	if !ok {
		return nil
	}
	now := s.clock.Now()
	if next <= now {
		return nil
	}
	if adv, ok := s.clock.(advancer); ok {
		adv.AdvanceTo(next)
		return nil
	}
	timer := time.NewTimer(time.Duration((next - now) * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close drops every pending task without resuming it.
func (s *Scheduler) Close() {
	for _, t := range s.tasks {
		t.finish()
	}
	s.tasks = nil
	clear(s.byThread)
}

package ctrl

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/embedlab/tact/hooking"
)

// HookPosBeforeTick triggers before a tick dispatches its due tasks.
var HookPosBeforeTick = &hooking.HookPos{Name: "BeforeTick"}

// HookPosAfterTick triggers after a tick dispatched all its due tasks.
var HookPosAfterTick = &hooking.HookPos{Name: "AfterTick"}

// HookPosBeforeTask triggers before a due task's action runs.
var HookPosBeforeTask = &hooking.HookPos{Name: "BeforeTask"}

// HookPosAfterTask triggers after a due task's action returned.
var HookPosAfterTask = &hooking.HookPos{Name: "AfterTask"}

// HookPosTaskError triggers when a task's action panicked. The recovered
// value is in HookCtx.Detail.
var HookPosTaskError = &hooking.HookPos{Name: "TaskError"}

// TickInfo describes one scheduler tick to hooks.
type TickInfo struct {
	Index uint64
	Now   time.Time
}

// A Task is a scheduler-owned record binding an action to a polling period.
type Task struct {
	name    string
	action  func()
	period  time.Duration
	nextDue time.Time
}

// Name returns the name the task was registered under.
func (t *Task) Name() string {
	return t.name
}

// Period returns the polling period of the task.
func (t *Task) Period() time.Duration {
	return t.period
}

// A Scheduler owns a sequence of task records and dispatches them from a
// single control goroutine.
//
// On each tick the scheduler samples the clock once, runs every task whose
// due time has elapsed in registration order, and rebases the task's due time
// from the sampled now. A slow action therefore delays later runs rather than
// triggering catch-up execution.
type Scheduler struct {
	*hooking.HookableBase

	clock        Clock
	tickInterval time.Duration

	mu    sync.Mutex
	tasks []*Task

	ticks atomic.Uint64
}

// NewScheduler creates a Scheduler that samples the given clock and sleeps
// for tickInterval between ticks.
func NewScheduler(clock Clock, tickInterval time.Duration) *Scheduler {
	if tickInterval <= 0 {
		log.Panic("tick interval must be positive")
	}

	return &Scheduler{
		HookableBase: hooking.NewHookableBase(),
		clock:        clock,
		tickInterval: tickInterval,
	}
}

// AddTask registers an action to run at the given period. The task is due
// immediately, so it is eligible to run on the very next tick.
func (s *Scheduler) AddTask(name string, action func(), period time.Duration) {
	if action == nil {
		log.Panic("task action must not be nil")
	}
	if period <= 0 {
		log.Panic("task period must be positive")
	}

	task := &Task{
		name:    name,
		action:  action,
		period:  period,
		nextDue: s.clock.CurrentTime(),
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()
}

// Run drives the tick loop for the given number of cycles. It returns nil
// after the last cycle, or the context error if the context is cancelled at
// a tick boundary. Run(ctx, 0) returns immediately without dispatching
// anything.
func (s *Scheduler) Run(ctx context.Context, cycles int) error {
	for i := 0; i < cycles; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.tick()
		s.clock.Sleep(s.tickInterval)
	}

	return nil
}

func (s *Scheduler) tick() {
	now := s.clock.CurrentTime()
	info := TickInfo{Index: s.ticks.Load(), Now: now}

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosBeforeTick,
		Item:   info,
	})

	for _, task := range s.collectDue(now) {
		s.runTask(task, info)
	}

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosAfterTick,
		Item:   info,
	})

	s.ticks.Add(1)
}

// collectDue gathers the due tasks in registration order and rebases their
// due times from the sampled now before any action runs.
func (s *Scheduler) collectDue(now time.Time) []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*Task

	for _, task := range s.tasks {
		if now.Before(task.nextDue) {
			continue
		}

		task.nextDue = now.Add(task.period)
		due = append(due, task)
	}

	return due
}

func (s *Scheduler) runTask(task *Task, info TickInfo) {
	hookCtx := hooking.HookCtx{
		Domain: s,
		Pos:    HookPosBeforeTask,
		Item:   task,
		Detail: info,
	}
	s.InvokeHook(hookCtx)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("task %s panicked at tick %d: %v",
				task.name, info.Index, r)

			hookCtx.Pos = HookPosTaskError
			hookCtx.Detail = r
			s.InvokeHook(hookCtx)

			return
		}

		hookCtx.Pos = HookPosAfterTask
		s.InvokeHook(hookCtx)
	}()

	task.action()
}

// Expedite marks the named task due so the next tick runs it regardless of
// its period. It is safe to call from any goroutine. It returns false when no
// task with the given name is registered.
func (s *Scheduler) Expedite(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, task := range s.tasks {
		if task.name == name {
			task.nextDue = time.Time{}
			return true
		}
	}

	return false
}

// CurrentTime returns the current time as sampled from the scheduler's clock.
func (s *Scheduler) CurrentTime() time.Time {
	return s.clock.CurrentTime()
}

// TickCount returns the number of completed ticks.
func (s *Scheduler) TickCount() uint64 {
	return s.ticks.Load()
}

// TickInterval returns the fixed inter-tick sleep interval.
func (s *Scheduler) TickInterval() time.Duration {
	return s.tickInterval
}

// TaskNames returns the names of the registered tasks in registration order.
func (s *Scheduler) TaskNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.tasks))
	for _, task := range s.tasks {
		names = append(names, task.name)
	}

	return names
}

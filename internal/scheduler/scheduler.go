// Package scheduler provides the broker's serialized tick scheduler. All
// time-based behavior - the sweep interval, the window-open interval, the
// window close countdown and each viewer's close countdown - runs through one
// Scheduler, and callbacks never interleave: within one tick sequence at most
// one scheduled callback executes at a time.
//
// Two implementations exist: Ticker, driven by wall-clock time, and Manual,
// driven explicitly by tests.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// Scheduler schedules callbacks on a serialized tick sequence.
type Scheduler interface {
	// SchedulePeriodic runs fn after delay, then every interval until the
	// task is cancelled. A delay of zero fires the first run immediately.
	SchedulePeriodic(delay, interval time.Duration, fn func()) *Task

	// ScheduleOnce runs fn once after delay unless cancelled first.
	ScheduleOnce(delay time.Duration, fn func()) *Task
}

// Task is a cancellable handle for one scheduled callback. Replacing a
// scheduled task always requires cancelling the old one first; a Task may be
// safely cancelled from within its own callback.
type Task struct {
	once   sync.Once
	cancel func()
}

// Cancel stops the task. Safe to call multiple times and from inside the
// task's own callback.
func (t *Task) Cancel() {
	t.once.Do(t.cancel)
}

func newTask(cancel func()) *Task {
	return &Task{cancel: cancel}
}

// Ticker is the wall-clock Scheduler used by the daemon. Each task runs on
// its own timer goroutine, but every callback invocation is serialized
// through one mutex, so no two callbacks ever run concurrently.
type Ticker struct {
	runMu  sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTicker creates a running wall-clock scheduler.
func NewTicker() *Ticker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Ticker{ctx: ctx, cancel: cancel}
}

// SchedulePeriodic implements Scheduler.
func (s *Ticker) SchedulePeriodic(delay, interval time.Duration, fn func()) *Task {
	taskCtx, taskCancel := context.WithCancel(s.ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if !s.sleep(taskCtx, delay) {
			return
		}
		if !s.runSerialized(taskCtx, fn) {
			return
		}

		if interval <= 0 {
			// Degenerate interval behaves like ScheduleOnce.
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-taskCtx.Done():
				return
			case <-ticker.C:
				if !s.runSerialized(taskCtx, fn) {
					return
				}
			}
		}
	}()

	return newTask(taskCancel)
}

// ScheduleOnce implements Scheduler.
func (s *Ticker) ScheduleOnce(delay time.Duration, fn func()) *Task {
	taskCtx, taskCancel := context.WithCancel(s.ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if !s.sleep(taskCtx, delay) {
			return
		}
		s.runSerialized(taskCtx, fn)
	}()

	return newTask(taskCancel)
}

// Stop cancels every task and waits for in-flight callbacks to finish.
// The scheduler cannot be reused afterwards.
func (s *Ticker) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Ticker) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// runSerialized executes fn under the shared run mutex. Returns false when
// the task was cancelled before the callback could run.
func (s *Ticker) runSerialized(ctx context.Context, fn func()) bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	// Re-check after acquiring the lock: a cancellation that raced with the
	// timer must win, so a cancelled task never fires again.
	if ctx.Err() != nil {
		return false
	}

	fn()
	return ctx.Err() == nil
}

package scheduler

import (
	"sync"
	"time"
)

// Manual is a Scheduler driven entirely by Advance calls, for deterministic
// tests. Virtual time only moves when a test says so; due callbacks fire in
// fire-time order (scheduling order breaks ties), one at a time, exactly like
// the serialized tick sequence of the real Ticker.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks map[int]*manualTask
}

type manualTask struct {
	id       int
	next     time.Duration
	interval time.Duration
	periodic bool
	fn       func()
}

// NewManual creates a manual scheduler at virtual time zero.
func NewManual() *Manual {
	return &Manual{tasks: make(map[int]*manualTask)}
}

// SchedulePeriodic implements Scheduler.
func (m *Manual) SchedulePeriodic(delay, interval time.Duration, fn func()) *Task {
	return m.add(delay, interval, interval > 0, fn)
}

// ScheduleOnce implements Scheduler.
func (m *Manual) ScheduleOnce(delay time.Duration, fn func()) *Task {
	return m.add(delay, 0, false, fn)
}

func (m *Manual) add(delay, interval time.Duration, periodic bool, fn func()) *Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	id := m.seq
	m.tasks[id] = &manualTask{
		id:       id,
		next:     m.now + delay,
		interval: interval,
		periodic: periodic,
		fn:       fn,
	}

	return newTask(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.tasks, id)
	})
}

// Advance moves virtual time forward by d, firing every callback that comes
// due on the way, in order. Callbacks may schedule or cancel tasks; a task
// scheduled during Advance fires within the same call if it comes due before
// the target time.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d

	for {
		task := m.nextDueLocked(target)
		if task == nil {
			break
		}

		if task.next > m.now {
			m.now = task.next
		}
		if task.periodic {
			task.next += task.interval
		} else {
			delete(m.tasks, task.id)
		}

		fn := task.fn
		m.mu.Unlock()
		fn()
		m.mu.Lock()
	}

	m.now = target
	m.mu.Unlock()
}

// Active returns the number of live (not yet cancelled or completed) tasks.
func (m *Manual) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Now returns the current virtual time.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) nextDueLocked(target time.Duration) *manualTask {
	var due *manualTask
	for _, task := range m.tasks {
		if task.next > target {
			continue
		}
		if due == nil || task.next < due.next || (task.next == due.next && task.id < due.id) {
			due = task
		}
	}
	return due
}

package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickerSchedulePeriodic(t *testing.T) {
	s := NewTicker()
	defer s.Stop()

	var runs atomic.Int32
	done := make(chan struct{})

	task := s.SchedulePeriodic(0, 5*time.Millisecond, func() {
		if runs.Add(1) == 3 {
			close(done)
		}
	})
	defer task.Cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for periodic runs")
	}
	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}

func TestTickerScheduleOnce(t *testing.T) {
	s := NewTicker()
	defer s.Stop()

	done := make(chan struct{})
	s.ScheduleOnce(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for one-shot run")
	}
}

func TestTickerCancelStopsCallbacks(t *testing.T) {
	s := NewTicker()
	defer s.Stop()

	var runs atomic.Int32
	task := s.SchedulePeriodic(0, time.Millisecond, func() { runs.Add(1) })

	// Let it fire at least once, then cancel and verify the count settles.
	require.Eventually(t, func() bool { return runs.Load() > 0 }, time.Second, time.Millisecond)
	task.Cancel()

	settled := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, runs.Load(), settled+1, "at most one in-flight callback may complete after cancel")
}

func TestTickerCallbacksAreSerialized(t *testing.T) {
	s := NewTicker()
	defer s.Stop()

	var mu sync.Mutex
	inFlight := 0
	maxInFlight := 0
	var runs atomic.Int32

	fn := func() {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		runs.Add(1)
	}

	for i := 0; i < 5; i++ {
		task := s.SchedulePeriodic(0, 2*time.Millisecond, fn)
		defer task.Cancel()
	}

	require.Eventually(t, func() bool { return runs.Load() >= 10 }, 5*time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxInFlight, "no two callbacks may interleave")
}

func TestTickerCancelFromWithinCallback(t *testing.T) {
	s := NewTicker()
	defer s.Stop()

	var runs atomic.Int32
	var taskMu sync.Mutex
	var task *Task
	ready := make(chan struct{})

	taskMu.Lock()
	task = s.SchedulePeriodic(5*time.Millisecond, 5*time.Millisecond, func() {
		runs.Add(1)
		taskMu.Lock()
		task.Cancel()
		taskMu.Unlock()
		select {
		case <-ready:
		default:
			close(ready)
		}
	})
	taskMu.Unlock()

	<-ready
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

func TestManualAdvance(t *testing.T) {
	t.Run("fires due periodic callbacks in order", func(t *testing.T) {
		m := NewManual()
		var ticks []time.Duration

		m.SchedulePeriodic(0, time.Second, func() { ticks = append(ticks, m.Now()) })

		m.Advance(3 * time.Second)
		// Due at 0s, 1s, 2s and 3s.
		assert.Len(t, ticks, 4)
	})

	t.Run("respects initial delay", func(t *testing.T) {
		m := NewManual()
		runs := 0
		m.SchedulePeriodic(10*time.Second, 10*time.Second, func() { runs++ })

		m.Advance(9 * time.Second)
		assert.Equal(t, 0, runs)

		m.Advance(time.Second)
		assert.Equal(t, 1, runs)

		m.Advance(25 * time.Second)
		assert.Equal(t, 3, runs)
	})

	t.Run("one-shot fires once and completes", func(t *testing.T) {
		m := NewManual()
		runs := 0
		m.ScheduleOnce(time.Second, func() { runs++ })

		m.Advance(time.Minute)
		assert.Equal(t, 1, runs)
		assert.Equal(t, 0, m.Active())
	})

	t.Run("task scheduled during a callback fires in the same advance", func(t *testing.T) {
		m := NewManual()
		var order []string

		m.ScheduleOnce(time.Second, func() {
			order = append(order, "outer")
			m.ScheduleOnce(time.Second, func() { order = append(order, "inner") })
		})

		m.Advance(5 * time.Second)
		assert.Equal(t, []string{"outer", "inner"}, order)
	})
}

func TestManualCancel(t *testing.T) {
	t.Run("cancelled tasks never fire", func(t *testing.T) {
		m := NewManual()
		runs := 0
		task := m.SchedulePeriodic(time.Second, time.Second, func() { runs++ })

		task.Cancel()
		m.Advance(time.Minute)

		assert.Equal(t, 0, runs)
		assert.Equal(t, 0, m.Active())
	})

	t.Run("cancel from within the callback stops the series", func(t *testing.T) {
		m := NewManual()
		runs := 0
		var task *Task
		task = m.SchedulePeriodic(0, time.Second, func() {
			runs++
			if runs == 2 {
				task.Cancel()
			}
		})

		m.Advance(time.Minute)
		assert.Equal(t, 2, runs)
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		m := NewManual()
		task := m.ScheduleOnce(time.Second, func() {})
		task.Cancel()
		task.Cancel()
		assert.Equal(t, 0, m.Active())
	})
}

func TestManualActive(t *testing.T) {
	m := NewManual()
	assert.Equal(t, 0, m.Active())

	t1 := m.SchedulePeriodic(time.Second, time.Second, func() {})
	m.ScheduleOnce(time.Second, func() {})
	assert.Equal(t, 2, m.Active())

	m.Advance(time.Second)
	assert.Equal(t, 1, m.Active(), "one-shot completes, periodic stays")

	t1.Cancel()
	assert.Equal(t, 0, m.Active())
}

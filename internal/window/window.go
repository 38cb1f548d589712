// Package window implements the scheduled access window: the broker is
// normally closed to new viewer sessions and opens periodically for a fixed
// duration. Transitions ride the serialized tick scheduler, so no two window
// callbacks ever interleave with each other or with viewer countdowns.
package window

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/dyluth/abyss/internal/config"
	"github.com/dyluth/abyss/internal/messages"
	"github.com/dyluth/abyss/internal/notify"
	"github.com/dyluth/abyss/internal/scheduler"
	"github.com/dyluth/abyss/pkg/abyss"
)

// SessionCloser tears down every live session when the window closes.
// Satisfied by session.Manager.
type SessionCloser interface {
	CloseAll(ctx context.Context)
}

// StatePublisher mirrors the window state for external command surfaces.
// Satisfied by abyss.Client; may be nil when the event stream is not wired.
type StatePublisher interface {
	SetWindowState(ctx context.Context, state *abyss.WindowState) error
}

// Window is the access window state machine. When the feature is disabled
// the window is pinned open for the process lifetime.
type Window struct {
	sched    scheduler.Scheduler
	sessions SessionCloser
	notifier notify.Notifier
	catalog  *messages.Catalog
	state    StatePublisher

	mu        sync.Mutex
	cfg       *config.WindowConfig
	gen       int // bumped on every cancel; ticks from older schedules are stale
	open      bool
	remaining int
	openTask  *scheduler.Task
	countTask *scheduler.Task
}

// New creates a window state machine. Call Start to arm it.
func New(sched scheduler.Scheduler, sessions SessionCloser, notifier notify.Notifier,
	catalog *messages.Catalog, state StatePublisher, cfg *config.WindowConfig) *Window {
	return &Window{
		sched:    sched,
		sessions: sessions,
		notifier: notifier,
		catalog:  catalog,
		state:    state,
		cfg:      cfg,
	}
}

// Start arms the window. Disabled configuration pins the state open; enabled
// configuration starts closed and opens every interval.
func (w *Window) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.armLocked()
}

// armLocked applies w.cfg from a clean (no scheduled tasks) state.
func (w *Window) armLocked() {
	if !w.cfg.Enabled {
		w.open = true
		w.remaining = 0
		w.publishState()
		return
	}

	w.open = false
	w.remaining = 0
	gen := w.gen
	interval := time.Duration(w.cfg.IntervalSeconds) * time.Second
	w.openTask = w.sched.SchedulePeriodic(interval, interval, func() { w.openTick(gen) })
	w.publishState()
}

// IsOpen reports whether new viewer sessions may be created right now.
func (w *Window) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// RemainingSeconds returns the seconds left before the window closes. Zero
// when the window is closed or pinned open.
func (w *Window) RemainingSeconds() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.remaining
}

// Reload applies a new configuration. In-flight open and countdown tasks are
// cancelled before re-arming, so a reload never leaves a stale timer behind.
// An open window is closed first.
func (w *Window) Reload(cfg *config.WindowConfig) {
	w.mu.Lock()
	w.cancelTasksLocked()
	wasOpen := w.open
	w.cfg = cfg
	w.mu.Unlock()

	// The new schedule starts closed; sessions opened under the old window
	// must not survive into it.
	if wasOpen && cfg.Enabled {
		w.close()
	}

	w.mu.Lock()
	w.armLocked()
	w.mu.Unlock()
}

// Stop cancels all scheduled work. The window state is left as-is.
func (w *Window) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancelTasksLocked()
}

func (w *Window) cancelTasksLocked() {
	// A tick that passed its cancellation check before Cancel landed may
	// still be waiting on w.mu; bumping the generation makes it a no-op.
	w.gen++
	if w.openTask != nil {
		w.openTask.Cancel()
		w.openTask = nil
	}
	if w.countTask != nil {
		w.countTask.Cancel()
		w.countTask = nil
	}
}

// openTick fires on every interval boundary: the window opens and the close
// countdown starts. A tick carrying a stale generation belongs to a schedule
// that was cancelled after the tick was already committed; it does nothing.
func (w *Window) openTick(gen int) {
	w.mu.Lock()
	if gen != w.gen || w.open {
		w.mu.Unlock()
		return
	}
	w.open = true
	w.remaining = w.cfg.DurationSeconds
	duration := w.remaining
	w.countTask = w.sched.SchedulePeriodic(time.Second, time.Second, func() { w.countdownTick(gen) })
	w.publishState()
	w.mu.Unlock()

	_ = w.notifier.Broadcast(context.Background(), w.catalog.Render("window.opened",
		"seconds", strconv.Itoa(duration)))
}

// countdownTick decrements the open countdown once a second. The remaining
// count lives in the window state, never in the closure, so a reload always
// wins over an in-flight tick.
func (w *Window) countdownTick(gen int) {
	w.mu.Lock()
	if gen != w.gen || !w.open {
		w.mu.Unlock()
		return
	}

	w.remaining--
	remaining := w.remaining

	if remaining <= 0 {
		if w.countTask != nil {
			w.countTask.Cancel()
			w.countTask = nil
		}
		w.mu.Unlock()
		w.close()
		return
	}

	warn := w.cfg.WarningSeconds
	stride := w.cfg.WarningStride
	w.publishState()
	w.mu.Unlock()

	if remaining <= warn && remaining%stride == 0 {
		_ = w.notifier.Broadcast(context.Background(), w.catalog.Render("window.closing",
			"seconds", strconv.Itoa(remaining)))
	}
}

// close transitions to CLOSED: every live session is torn down and the
// closed notice goes out.
func (w *Window) close() {
	w.mu.Lock()
	w.open = false
	w.remaining = 0
	w.publishState()
	w.mu.Unlock()

	w.sessions.CloseAll(context.Background())
	_ = w.notifier.Broadcast(context.Background(), w.catalog.Get("window.closed"))
}

// publishState mirrors the current state for external surfaces. Callers hold
// w.mu. Failures are logged and ignored: the mirror is observational.
func (w *Window) publishState() {
	if w.state == nil {
		return
	}

	name := abyss.WindowClosed
	if w.open {
		name = abyss.WindowOpen
	}

	err := w.state.SetWindowState(context.Background(), &abyss.WindowState{
		State:            name,
		RemainingSeconds: w.remaining,
		UpdatedAtMs:      time.Now().UnixMilli(),
	})
	if err != nil {
		log.Printf("[Window] failed to publish window state: %v", err)
	}
}

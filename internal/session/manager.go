// Package session manages concurrent viewer sessions over the shared store:
// opening and closing page frames, navigation and click handling, per-viewer
// close countdowns and the refresh fan-out after store mutations.
package session

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dyluth/abyss/internal/config"
	"github.com/dyluth/abyss/internal/messages"
	"github.com/dyluth/abyss/internal/notify"
	"github.com/dyluth/abyss/internal/scheduler"
	"github.com/dyluth/abyss/pkg/abyss"
)

// ErrNoSession is returned for operations addressed to a viewer without a
// live session.
var ErrNoSession = errors.New("no active session for viewer")

// Raw click kinds accepted at the presentation boundary. Anything else is
// absorbed without effect.
const (
	ClickLeft       = "left"
	ClickRight      = "right"
	ClickShiftLeft  = "shift-left"
	ClickShiftRight = "shift-right"
	ClickMiddle     = "middle"
)

type viewerSession struct {
	page      int
	tag       string // capability tag of the live frame
	remaining int    // seconds until the close countdown fires
	closeTask *scheduler.Task
}

// Manager owns every live viewer session. All session state is guarded by
// one mutex; the manager never holds it across a store mutation, because
// mutations synchronously re-enter RefreshAll through the mutation listener.
type Manager struct {
	store     *abyss.Store
	presenter Presenter
	notifier  notify.Notifier
	catalog   *messages.Catalog
	sched     scheduler.Scheduler

	mu       sync.Mutex
	frameCfg *config.FrameConfig
	sessCfg  *config.SessionConfig
	navCfg   *config.NavigationConfig
	sessions map[string]*viewerSession
}

// NewManager creates a session manager over the given collaborators.
func NewManager(store *abyss.Store, presenter Presenter, notifier notify.Notifier,
	catalog *messages.Catalog, sched scheduler.Scheduler, cfg *config.AbyssConfig) *Manager {
	return &Manager{
		store:     store,
		presenter: presenter,
		notifier:  notifier,
		catalog:   catalog,
		sched:     sched,
		frameCfg:  cfg.Frame,
		sessCfg:   cfg.Session,
		navCfg:    cfg.Navigation,
		sessions:  make(map[string]*viewerSession),
	}
}

// Reconfigure swaps in new frame, session and navigation settings. Live
// sessions keep running; the next render uses the new layout.
func (m *Manager) Reconfigure(cfg *config.AbyssConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frameCfg = cfg.Frame
	m.sessCfg = cfg.Session
	m.navCfg = cfg.Navigation
}

// Open creates a session for the viewer at the given page and renders the
// first frame. Re-opening replaces the existing session: the old close
// countdown is cancelled, a fresh frame tag is issued and the countdown
// restarts from the configured value.
func (m *Manager) Open(ctx context.Context, viewerID string, page int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.sessions[viewerID]; ok && old.closeTask != nil {
		old.closeTask.Cancel()
	}

	sess := &viewerSession{
		page:      m.clampPage(page),
		tag:       uuid.New().String(),
		remaining: m.sessCfg.CloseAfterSeconds,
	}
	m.sessions[viewerID] = sess

	if !m.sessCfg.CountdownDisabled() {
		tag := sess.tag
		sess.closeTask = m.sched.SchedulePeriodic(time.Second, time.Second, func() {
			m.countdownTick(viewerID, tag)
		})
	}

	return m.renderLocked(ctx, viewerID, sess)
}

// Close tears down the viewer's session and dismisses the frame.
// Idempotent: closing a viewer without a session is a no-op.
func (m *Manager) Close(ctx context.Context, viewerID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[viewerID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	if sess.closeTask != nil {
		sess.closeTask.Cancel()
	}
	delete(m.sessions, viewerID)
	m.mu.Unlock()

	m.presenter.Dismiss(ctx, viewerID)
	return nil
}

// CloseAll tears down every session. Used when the access window closes and
// on daemon shutdown.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	viewers := make([]string, 0, len(m.sessions))
	for viewerID, sess := range m.sessions {
		if sess.closeTask != nil {
			sess.closeTask.Cancel()
		}
		viewers = append(viewers, viewerID)
	}
	m.sessions = make(map[string]*viewerSession)
	m.mu.Unlock()

	for _, viewerID := range viewers {
		m.presenter.Dismiss(ctx, viewerID)
	}
}

// ChangePage moves the viewer to the given page (clamped to the valid range)
// and re-renders. Navigating counts as activity: the close countdown restarts
// from the configured value.
func (m *Manager) ChangePage(ctx context.Context, viewerID string, page int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[viewerID]
	if !ok {
		return ErrNoSession
	}

	sess.page = m.clampPage(page)
	sess.remaining = m.sessCfg.CloseAfterSeconds
	return m.renderLocked(ctx, viewerID, sess)
}

// Refresh re-renders the viewer's current frame against the live store. When
// removals have left the viewer beyond the last page, the page is clamped
// first.
func (m *Manager) Refresh(ctx context.Context, viewerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[viewerID]
	if !ok {
		return ErrNoSession
	}

	sess.page = m.clampPage(sess.page)
	return m.renderLocked(ctx, viewerID, sess)
}

// RefreshAll re-renders every live session. Viewers whose render fails are
// unreachable and are pruned.
func (m *Manager) RefreshAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for viewerID, sess := range m.sessions {
		sess.page = m.clampPage(sess.page)
		_ = m.renderLocked(ctx, viewerID, sess)
	}
}

// HasSession reports whether the viewer has a live session.
func (m *Manager) HasSession(viewerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[viewerID]
	return ok
}

// CurrentPage returns the viewer's current page.
func (m *Manager) CurrentPage(viewerID string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[viewerID]
	if !ok {
		return 0, false
	}
	return sess.page, true
}

// SessionCount returns the number of live sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Deposit adds an item held by the viewer to the store. The mutation
// listener handles the refresh fan-out.
func (m *Manager) Deposit(ctx context.Context, viewerID string, item abyss.ItemRecord) error {
	if !m.HasSession(viewerID) {
		return ErrNoSession
	}

	if !m.store.Add(item) {
		return errors.New("cannot deposit an empty item")
	}

	_ = m.notifier.SendTo(ctx, viewerID, m.catalog.Get("session.item-added"))
	return nil
}

// HandleClick dispatches one raw click on a viewer's frame. Clicks carrying
// a tag other than the live frame's are stale and absorbed. Control-row
// clicks navigate; content clicks take the clicked record, or deposit the
// held item when the slot is empty. Every path is safe against stale state:
// a take on an already-removed record degrades to a refresh.
func (m *Manager) HandleClick(ctx context.Context, viewerID, frameTag string, slot int, click string, held *abyss.ItemRecord) error {
	m.mu.Lock()
	sess, ok := m.sessions[viewerID]
	if !ok || sess.tag != frameTag {
		m.mu.Unlock()
		return nil
	}
	page := sess.page
	size := m.frameCfg.Size
	capacity := m.frameCfg.ItemsPerPage()
	nav := m.navCfg
	m.mu.Unlock()

	if slot < 0 || slot >= size {
		return nil
	}

	if slot >= capacity {
		return m.handleControlClick(ctx, viewerID, slot-capacity, page, capacity, nav)
	}

	holding := held != nil && !held.IsEmpty()
	index := abyss.GlobalIndex(page, slot, capacity)
	switch {
	case holding && (click == ClickLeft || click == ClickRight):
		// An occupied slot wins over the held item: the click takes the
		// record and the viewer keeps holding. Deposits land on empty slots.
		if m.store.IsValidIndex(index) {
			return m.take(ctx, viewerID, index)
		}
		if m.store.Add(*held) {
			_ = m.notifier.SendTo(ctx, viewerID, m.catalog.Get("session.item-added"))
		}
		return nil

	case click == ClickMiddle:
		// Read-only peek.
		return nil

	case click == ClickLeft || click == ClickRight || click == ClickShiftLeft || click == ClickShiftRight:
		return m.take(ctx, viewerID, index)

	default:
		return nil
	}
}

func (m *Manager) handleControlClick(ctx context.Context, viewerID string, offset, page, capacity int, nav *config.NavigationConfig) error {
	switch {
	case nav.Previous.Enabled && offset == nav.Previous.Slot:
		if page > 0 {
			return m.ChangePage(ctx, viewerID, page-1)
		}
		return nil

	case nav.Next.Enabled && offset == nav.Next.Slot:
		if page < m.store.TotalPages(capacity)-1 {
			return m.ChangePage(ctx, viewerID, page+1)
		}
		return nil

	case nav.Close.Enabled && offset == nav.Close.Slot:
		return m.Close(ctx, viewerID)

	default:
		// Info button and unbound control slots absorb the click.
		return nil
	}
}

// take atomically removes the record at the global index and hands it to the
// viewer. A failed delivery returns the record to the store.
func (m *Manager) take(ctx context.Context, viewerID string, index int) error {
	item, ok := m.store.Take(index)
	if !ok {
		// Someone else took it first; the click was against a stale frame.
		return m.Refresh(ctx, viewerID)
	}

	if err := m.presenter.Deliver(ctx, viewerID, item); err != nil {
		m.store.Add(item)
		_ = m.notifier.SendTo(ctx, viewerID, m.catalog.Get("errors.inventory-full"))
		return nil
	}

	_ = m.notifier.SendTo(ctx, viewerID, m.catalog.Get("session.item-taken"))
	return nil
}

// countdownTick runs once a second per session. The remaining count lives in
// the session state, never in the closure, so a reload or reopen always wins
// over an in-flight tick: a tick whose tag no longer matches is stale and
// does nothing.
func (m *Manager) countdownTick(viewerID, tag string) {
	ctx := context.Background()

	m.mu.Lock()
	sess, ok := m.sessions[viewerID]
	if !ok || sess.tag != tag {
		m.mu.Unlock()
		return
	}

	sess.remaining--
	remaining := sess.remaining
	warnBand := m.sessCfg.WarningSeconds

	if remaining <= 0 {
		if sess.closeTask != nil {
			sess.closeTask.Cancel()
		}
		delete(m.sessions, viewerID)
		m.mu.Unlock()
		m.presenter.Dismiss(ctx, viewerID)
		return
	}
	m.mu.Unlock()

	if remaining <= warnBand {
		_ = m.notifier.SendTo(ctx, viewerID, m.catalog.Render("session.closing",
			"seconds", strconv.Itoa(remaining)))
	}
}

// clampPage bounds a requested page to the store's current page range.
// Callers hold m.mu.
func (m *Manager) clampPage(page int) int {
	total := m.store.TotalPages(m.frameCfg.ItemsPerPage())
	if page < 0 {
		return 0
	}
	if page > total-1 {
		return total - 1
	}
	return page
}

// renderLocked builds and delivers the viewer's frame. A render error means
// the viewer is unreachable: the session is pruned. Callers hold m.mu.
func (m *Manager) renderLocked(ctx context.Context, viewerID string, sess *viewerSession) error {
	frame := buildFrame(m.store, sess.tag, sess.page, m.frameCfg, m.navCfg)
	if err := m.presenter.Render(ctx, viewerID, frame); err != nil {
		if sess.closeTask != nil {
			sess.closeTask.Cancel()
		}
		delete(m.sessions, viewerID)
		return err
	}
	return nil
}

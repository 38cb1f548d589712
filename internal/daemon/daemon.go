// Package daemon assembles the broker: the store, the session manager, the
// access window, the sweep collector and the event stream, wired together
// and driven by the viewer command channel.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/dyluth/abyss/internal/broadcast"
	"github.com/dyluth/abyss/internal/config"
	"github.com/dyluth/abyss/internal/messages"
	"github.com/dyluth/abyss/internal/notify"
	"github.com/dyluth/abyss/internal/scheduler"
	"github.com/dyluth/abyss/internal/session"
	"github.com/dyluth/abyss/internal/sweep"
	"github.com/dyluth/abyss/internal/window"
	"github.com/dyluth/abyss/pkg/abyss"
)

// Daemon is the running broker instance.
type Daemon struct {
	client       *abyss.Client
	instanceName string
	configPath   string

	store     *abyss.Store
	catalog   *messages.Catalog
	notifier  notify.Notifier
	sched     *scheduler.Ticker
	sessions  *session.Manager
	window    *window.Window
	collector *sweep.Collector
	health    *HealthServer

	mu    sync.Mutex
	debug bool
}

// New wires up a daemon from the configuration at configPath. The ambient
// item source is a collaborator the embedding process provides; pass nil to
// run without a sweep.
func New(client *abyss.Client, instanceName, configPath string, source sweep.Source) (*Daemon, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	catalog, err := messages.Load(filepath.Dir(configPath), cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("failed to load message catalog: %w", err)
	}

	d := &Daemon{
		client:       client,
		instanceName: instanceName,
		configPath:   configPath,
		store:        abyss.NewStore(),
		catalog:      catalog,
		notifier:     notify.NewRedis(client),
		sched:        scheduler.NewTicker(),
		debug:        cfg.Debug,
	}

	d.sessions = session.NewManager(d.store, session.NewRedisPresenter(client),
		d.notifier, catalog, d.sched, cfg)
	d.store.SetListener(broadcast.New(d.sessions, client).OnMutation)
	d.window = window.New(d.sched, d.sessions, d.notifier, catalog, client, cfg.Window)

	if source != nil {
		d.collector = sweep.NewCollector(source, d.store, d.notifier, catalog, d.sched, cfg.Sweep)
	}

	d.health = NewHealthServer(client, d)
	return d, nil
}

// Store exposes the live store for embedding processes that feed it
// directly.
func (d *Daemon) Store() *abyss.Store {
	return d.store
}

// Sessions exposes the session manager.
func (d *Daemon) Sessions() *session.Manager {
	return d.sessions
}

// Window exposes the access window.
func (d *Daemon) Window() *window.Window {
	return d.window
}

// Run starts the daemon and blocks until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.health.Start(); err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}
	defer d.health.Shutdown(context.Background())

	log.Printf("[Daemon] Starting for instance '%s'", d.instanceName)

	d.window.Start()
	if d.collector != nil {
		d.collector.Start()
	}

	subscription, err := d.client.SubscribeViewerCommands(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to viewer commands: %w", err)
	}
	defer subscription.Close()

	log.Printf("[Daemon] Subscribed to viewer_commands")

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Daemon] Shutting down...")
			d.shutdown()
			return nil

		case cmd, ok := <-subscription.Events():
			if !ok {
				log.Printf("[Daemon] Subscription closed")
				d.shutdown()
				return nil
			}

			d.logEvent("command_received", map[string]interface{}{
				"kind":   string(cmd.Kind),
				"viewer": cmd.ViewerID,
			})

			if err := d.dispatch(ctx, cmd); err != nil {
				log.Printf("[Daemon] Error handling %s for %s: %v", cmd.Kind, cmd.ViewerID, err)
				// Continue processing - don't crash on single command failure
			}

		case err, ok := <-subscription.Errors():
			if !ok {
				log.Printf("[Daemon] Error channel closed")
				d.shutdown()
				return nil
			}
			log.Printf("[Daemon] Subscription error: %v", err)
			// Continue processing - errors are non-fatal
		}
	}
}

// dispatch routes one viewer command. The access window gates session
// creation only: existing sessions keep working until the window forces
// them closed.
func (d *Daemon) dispatch(ctx context.Context, cmd *abyss.ViewerCommand) error {
	switch cmd.Kind {
	case abyss.ViewerCommandOpen:
		if !d.window.IsOpen() {
			d.debugLog("open refused for %s: window closed", cmd.ViewerID)
			return d.notifier.SendTo(ctx, cmd.ViewerID, d.catalog.Get("errors.window-closed"))
		}
		return d.sessions.Open(ctx, cmd.ViewerID, cmd.Page)

	case abyss.ViewerCommandClose:
		return d.sessions.Close(ctx, cmd.ViewerID)

	case abyss.ViewerCommandPage:
		return d.sessions.ChangePage(ctx, cmd.ViewerID, cmd.Page)

	case abyss.ViewerCommandClick:
		return d.sessions.HandleClick(ctx, cmd.ViewerID, cmd.FrameTag, cmd.Slot, cmd.Click, cmd.Item)

	case abyss.ViewerCommandDeposit:
		// Commands arrive off the wire unvalidated; never trust Item.
		if cmd.Item == nil {
			return fmt.Errorf("deposit command without an item")
		}
		return d.sessions.Deposit(ctx, cmd.ViewerID, *cmd.Item)

	default:
		return fmt.Errorf("unknown command kind: %s", cmd.Kind)
	}
}

// Reload re-reads the configuration and message catalog and re-arms the
// window and sweep schedules. Old timers are cancelled before new ones are
// armed.
func (d *Daemon) Reload() error {
	cfg, err := config.Load(d.configPath)
	if err != nil {
		return fmt.Errorf("reload aborted: %w", err)
	}

	if err := d.catalog.Reload(filepath.Dir(d.configPath), cfg.Language); err != nil {
		return fmt.Errorf("reload aborted: %w", err)
	}

	d.mu.Lock()
	d.debug = cfg.Debug
	d.mu.Unlock()

	d.sessions.Reconfigure(cfg)
	d.window.Reload(cfg.Window)
	if d.collector != nil {
		d.collector.Reload(cfg.Sweep)
	}

	d.logEvent("config_reloaded", map[string]interface{}{
		"language":       cfg.Language,
		"window_enabled": cfg.Window.Enabled,
		"sweep_enabled":  cfg.Sweep.Enabled,
	})
	return nil
}

func (d *Daemon) shutdown() {
	d.sessions.CloseAll(context.Background())
	if d.collector != nil {
		d.collector.Stop()
	}
	d.window.Stop()
	d.sched.Stop()
}

// logEvent logs a structured event in JSON format.
func (d *Daemon) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "daemon"
	data["event_type"] = eventType
	data["instance"] = d.instanceName

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Daemon] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}

func (d *Daemon) debugLog(format string, a ...interface{}) {
	d.mu.Lock()
	debug := d.debug
	d.mu.Unlock()

	if debug {
		log.Printf("[Daemon] "+format, a...)
	}
}

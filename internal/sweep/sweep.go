// Package sweep periodically pulls discoverable items from an ambient item
// source into the store. The source decides what exists; the collector
// decides what is eligible (exclusion groups) and owns the schedule.
package sweep

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

// Discovered is one item the ambient source currently exposes. Ref is the
// source's opaque handle, used to remove the item once collected; Group is
// matched against the configured exclusion groups.
type Discovered struct {
	Ref   string
	Group string
	Item  abyss.ItemRecord
}

// Source is the ambient item source collaborator.
type Source interface {
	// List returns every currently discoverable item.
	List(ctx context.Context) ([]Discovered, error)

	// Remove takes one item out of the source. An item that cannot be
	// removed is not collected.
	Remove(ctx context.Context, ref string) error
}

// Collector runs the periodic sweep.
type Collector struct {
	source   Source
	store    *abyss.Store
	notifier notify.Notifier
	catalog  *messages.Catalog
	sched    scheduler.Scheduler

	mu   sync.Mutex
	cfg  *config.SweepConfig
	task *scheduler.Task
}

// NewCollector creates a sweep collector. Call Start to arm the schedule.
func NewCollector(source Source, store *abyss.Store, notifier notify.Notifier,
	catalog *messages.Catalog, sched scheduler.Scheduler, cfg *config.SweepConfig) *Collector {
	return &Collector{
		source:   source,
		store:    store,
		notifier: notifier,
		catalog:  catalog,
		sched:    sched,
		cfg:      cfg,
	}
}

// Start arms the periodic sweep. A disabled configuration arms nothing;
// CollectNow still works.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armLocked()
}

func (c *Collector) armLocked() {
	if !c.cfg.Enabled {
		return
	}
	interval := time.Duration(c.cfg.IntervalSeconds) * time.Second
	c.task = c.sched.SchedulePeriodic(interval, interval, func() {
		if _, err := c.CollectNow(context.Background()); err != nil {
			log.Printf("[Sweep] sweep failed: %v", err)
		}
	})
}

// Reload applies a new configuration. The old timer is cancelled before the
// new one is armed, so a reload never leaves two sweeps running.
func (c *Collector) Reload(cfg *config.SweepConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.task != nil {
		c.task.Cancel()
		c.task = nil
	}
	c.cfg = cfg
	c.armLocked()
}

// Stop cancels the periodic sweep.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.task != nil {
		c.task.Cancel()
		c.task = nil
	}
}

// CollectNow runs one sweep immediately and returns the number of records
// collected. Items in excluded groups are skipped; items the source refuses
// to release are skipped. The whole batch lands in the store in one critical
// section, and nothing at all fires when the sweep comes up empty.
func (c *Collector) CollectNow(ctx context.Context) (int, error) {
	c.mu.Lock()
	excluded := make(map[string]bool, len(c.cfg.ExcludedGroups))
	for _, group := range c.cfg.ExcludedGroups {
		excluded[group] = true
	}
	notifyViewers := c.cfg.NotifyViewers
	c.mu.Unlock()

	discovered, err := c.source.List(ctx)
	if err != nil {
		return 0, err
	}

	var batch []abyss.ItemRecord
	quantity := 0
	for _, d := range discovered {
		if excluded[d.Group] || d.Item.IsEmpty() {
			continue
		}
		if err := c.source.Remove(ctx, d.Ref); err != nil {
			log.Printf("[Sweep] could not release %s: %v", d.Ref, err)
			continue
		}
		batch = append(batch, d.Item)
		quantity += d.Item.Quantity
	}

	if len(batch) == 0 {
		return 0, nil
	}

	added := c.store.AddBatch(batch)
	log.Printf("[Sweep] collected %d records", added)

	if notifyViewers {
		_ = c.notifier.Broadcast(ctx, c.catalog.Render("sweep.items-collected",
			"amount", strconv.Itoa(quantity)))
	}

	return added, nil
}

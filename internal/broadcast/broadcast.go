// Package broadcast fans a committed store mutation out to every observer:
// live viewer sessions are re-rendered and a store event is published on the
// event stream. The fan-out is synchronous - it runs on the mutating
// goroutine, after the mutation has committed, so every refreshed frame
// reflects at least the state that mutation produced.
package broadcast

import (
	"context"
	"log"
	"time"

	"github.com/dyluth/abyss/pkg/abyss"
)

// Refresher re-renders live viewer sessions. Satisfied by session.Manager.
type Refresher interface {
	RefreshAll(ctx context.Context)
}

// Publisher emits store events onto the event stream. Satisfied by
// abyss.Client.
type Publisher interface {
	PublishStoreEvent(ctx context.Context, ev *abyss.StoreEvent) error
}

// Broadcaster is wired as the store's mutation listener.
type Broadcaster struct {
	sessions Refresher
	events   Publisher
}

// New creates a broadcaster. events may be nil when the event stream is not
// wired (tests).
func New(sessions Refresher, events Publisher) *Broadcaster {
	return &Broadcaster{sessions: sessions, events: events}
}

// OnMutation handles one committed mutation. Publish failures are logged and
// otherwise ignored: the event stream is observational and must never stall
// the store.
func (b *Broadcaster) OnMutation(m abyss.Mutation) {
	ctx := context.Background()

	b.sessions.RefreshAll(ctx)

	if b.events == nil {
		return
	}

	ev := &abyss.StoreEvent{
		Kind:        m.Kind,
		Delta:       m.Delta,
		Count:       m.Count,
		TimestampMs: time.Now().UnixMilli(),
	}
	if err := b.events.PublishStoreEvent(ctx, ev); err != nil {
		log.Printf("[Broadcast] failed to publish store event: %v", err)
	}
}

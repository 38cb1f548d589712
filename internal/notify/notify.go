// Package notify delivers rendered notice text to viewers. The broker core
// talks to the Notifier interface only; the Redis implementation publishes
// notices onto the instance's notice channel for terminal clients to watch.
package notify

import (
	"context"
	"time"

	"github.com/dyluth/abyss/pkg/abyss"
)

// Notifier delivers notices. Broadcast reaches every connected viewer,
// SendTo reaches one.
type Notifier interface {
	Broadcast(ctx context.Context, text string) error
	SendTo(ctx context.Context, viewerID, text string) error
}

// Redis publishes notices through the shared abyss client.
type Redis struct {
	client *abyss.Client
}

// NewRedis creates a Redis-backed notifier.
func NewRedis(client *abyss.Client) *Redis {
	return &Redis{client: client}
}

// Broadcast implements Notifier.
func (r *Redis) Broadcast(ctx context.Context, text string) error {
	return r.client.PublishNotice(ctx, &abyss.NoticeEvent{
		Text:        text,
		TimestampMs: time.Now().UnixMilli(),
	})
}

// SendTo implements Notifier.
func (r *Redis) SendTo(ctx context.Context, viewerID, text string) error {
	return r.client.PublishNotice(ctx, &abyss.NoticeEvent{
		ViewerID:    viewerID,
		Text:        text,
		TimestampMs: time.Now().UnixMilli(),
	})
}

// Discard is a Notifier that drops every notice. Used when notices are
// disabled and in tests.
type Discard struct{}

// Broadcast implements Notifier.
func (Discard) Broadcast(context.Context, string) error { return nil }

// SendTo implements Notifier.
func (Discard) SendTo(context.Context, string, string) error { return nil }

// Recorder is a Notifier that captures notices in memory, for tests.
type Recorder struct {
	Broadcasts []string
	Direct     map[string][]string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{Direct: make(map[string][]string)}
}

// Broadcast implements Notifier.
func (r *Recorder) Broadcast(_ context.Context, text string) error {
	r.Broadcasts = append(r.Broadcasts, text)
	return nil
}

// SendTo implements Notifier.
func (r *Recorder) SendTo(_ context.Context, viewerID, text string) error {
	r.Direct[viewerID] = append(r.Direct[viewerID], text)
	return nil
}

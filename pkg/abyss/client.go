package abyss

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for the abyss event
// stream. All keys and channels are automatically namespaced with the
// instance name. The client is thread-safe and can be used concurrently from
// multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new event stream client for the specified instance.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: abyss instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PublishStoreEvent validates and publishes a store mutation event.
func (c *Client) PublishStoreEvent(ctx context.Context, ev *StoreEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid store event: %w", err)
	}
	return c.publish(ctx, StoreEventsChannel(c.instanceName), ev)
}

// PublishNotice validates and publishes a notice event.
func (c *Client) PublishNotice(ctx context.Context, ev *NoticeEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid notice event: %w", err)
	}
	return c.publish(ctx, NoticeEventsChannel(c.instanceName), ev)
}

// PublishFrame validates and publishes a rendered frame event.
func (c *Client) PublishFrame(ctx context.Context, ev *FrameEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid frame event: %w", err)
	}
	return c.publish(ctx, FrameEventsChannel(c.instanceName), ev)
}

// PublishViewerCommand validates and publishes a viewer command for the
// daemon to dispatch.
func (c *Client) PublishViewerCommand(ctx context.Context, cmd *ViewerCommand) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("invalid viewer command: %w", err)
	}
	return c.publish(ctx, ViewerCommandsChannel(c.instanceName), cmd)
}

func (c *Client) publish(ctx context.Context, channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := c.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}

	return nil
}

// SetWindowState writes the access window state hash.
// The daemon calls this on every window transition and countdown tick.
func (c *Client) SetWindowState(ctx context.Context, state *WindowState) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("invalid window state: %w", err)
	}

	key := WindowStateKey(c.instanceName)
	fields := map[string]any{
		"state":             string(state.State),
		"remaining_seconds": strconv.Itoa(state.RemainingSeconds),
		"updated_at_ms":     strconv.FormatInt(state.UpdatedAtMs, 10),
	}

	if err := c.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("failed to write window state: %w", err)
	}

	return nil
}

// GetWindowState reads the access window state hash.
// Returns (nil, redis.Nil) if no state has been written yet.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetWindowState(ctx context.Context) (*WindowState, error) {
	key := WindowStateKey(c.instanceName)

	fields, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read window state: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(fields) == 0 {
		return nil, redis.Nil
	}

	remaining, err := strconv.Atoi(fields["remaining_seconds"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse remaining_seconds: %w", err)
	}

	updatedAt, err := strconv.ParseInt(fields["updated_at_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at_ms: %w", err)
	}

	state := &WindowState{
		State:            WindowStateName(fields["state"]),
		RemainingSeconds: remaining,
		UpdatedAtMs:      updatedAt,
	}

	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("corrupt window state: %w", err)
	}

	return state, nil
}

// Subscription represents an active Pub/Sub subscription delivering decoded
// events of one type. Caller must call Close() when done to clean up
// resources.
type Subscription[T any] struct {
	events <-chan *T
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of decoded events.
// The channel is closed when the subscription is closed or the context is
// cancelled.
func (s *Subscription[T]) Events() <-chan *T {
	return s.events
}

// Errors returns the channel of subscription errors. Errors are non-fatal:
// the subscription continues and the offending message is skipped.
func (s *Subscription[T]) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription[T]) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeStoreEvents subscribes to store mutation events for this instance.
// Caller must call subscription.Close() when done. Context cancellation also
// stops the subscription.
func (c *Client) SubscribeStoreEvents(ctx context.Context) (*Subscription[StoreEvent], error) {
	return subscribe[StoreEvent](ctx, c.rdb, StoreEventsChannel(c.instanceName))
}

// SubscribeNotices subscribes to notice events for this instance.
func (c *Client) SubscribeNotices(ctx context.Context) (*Subscription[NoticeEvent], error) {
	return subscribe[NoticeEvent](ctx, c.rdb, NoticeEventsChannel(c.instanceName))
}

// SubscribeFrames subscribes to rendered frame events for this instance.
func (c *Client) SubscribeFrames(ctx context.Context) (*Subscription[FrameEvent], error) {
	return subscribe[FrameEvent](ctx, c.rdb, FrameEventsChannel(c.instanceName))
}

// SubscribeViewerCommands subscribes to viewer commands for this instance.
// Used by the daemon's dispatch loop.
func (c *Client) SubscribeViewerCommands(ctx context.Context) (*Subscription[ViewerCommand], error) {
	return subscribe[ViewerCommand](ctx, c.rdb, ViewerCommandsChannel(c.instanceName))
}

// subscribe wires one Pub/Sub channel to a typed subscription. Events are
// delivered on a buffered channel (size 10) to prevent blocking; if the
// subscriber is too slow, events may be dropped by Redis Pub/Sub
// (at-most-once delivery).
func subscribe[T any](ctx context.Context, rdb *redis.Client, channel string) (*Subscription[T], error) {
	pubsub := rdb.Subscribe(ctx, channel)

	eventsChan := make(chan *T, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event T
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal event on %s: %w", channel, err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription[T]{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error
// (redis.Nil). Use this to check if GetWindowState returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}

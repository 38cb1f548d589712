package abyss

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) *Client {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-instance", client.instanceName)
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client := setupTestClient(t)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestPublishStoreEvent(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	t.Run("delivers event to subscriber", func(t *testing.T) {
		sub, err := client.SubscribeStoreEvents(ctx)
		require.NoError(t, err)
		defer sub.Close()

		ev := &StoreEvent{
			Kind:        MutationAdd,
			Delta:       3,
			Count:       7,
			TimestampMs: time.Now().UnixMilli(),
		}
		require.NoError(t, client.PublishStoreEvent(ctx, ev))

		select {
		case got := <-sub.Events():
			assert.Equal(t, MutationAdd, got.Kind)
			assert.Equal(t, 3, got.Delta)
			assert.Equal(t, 7, got.Count)
		case <-time.After(1 * time.Second):
			t.Fatal("timeout waiting for store event")
		}
	})

	t.Run("rejects invalid event", func(t *testing.T) {
		err := client.PublishStoreEvent(ctx, &StoreEvent{Kind: "explode"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid store event")
	})
}

func TestPublishNotice(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	t.Run("broadcast and direct notices round trip", func(t *testing.T) {
		sub, err := client.SubscribeNotices(ctx)
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, client.PublishNotice(ctx, &NoticeEvent{
			Text:        "the abyss has opened",
			TimestampMs: time.Now().UnixMilli(),
		}))
		require.NoError(t, client.PublishNotice(ctx, &NoticeEvent{
			ViewerID:    "steve",
			Text:        "item taken",
			TimestampMs: time.Now().UnixMilli(),
		}))

		first := receiveNotice(t, sub)
		assert.Empty(t, first.ViewerID)
		assert.Equal(t, "the abyss has opened", first.Text)

		second := receiveNotice(t, sub)
		assert.Equal(t, "steve", second.ViewerID)
	})

	t.Run("rejects empty text", func(t *testing.T) {
		err := client.PublishNotice(ctx, &NoticeEvent{})
		assert.Error(t, err)
	})
}

func receiveNotice(t *testing.T, sub *Subscription[NoticeEvent]) *NoticeEvent {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for notice event")
		return nil
	}
}

func TestPublishFrame(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.SubscribeFrames(ctx)
	require.NoError(t, err)
	defer sub.Close()

	ev := &FrameEvent{
		ViewerID:    "alex",
		Frame:       json.RawMessage(`{"page":0,"total_pages":2}`),
		TimestampMs: time.Now().UnixMilli(),
	}
	require.NoError(t, client.PublishFrame(ctx, ev))

	select {
	case got := <-sub.Events():
		assert.Equal(t, "alex", got.ViewerID)
		assert.JSONEq(t, `{"page":0,"total_pages":2}`, string(got.Frame))
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for frame event")
	}
}

func TestPublishViewerCommand(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	t.Run("round trips through the command channel", func(t *testing.T) {
		sub, err := client.SubscribeViewerCommands(ctx)
		require.NoError(t, err)
		defer sub.Close()

		item := NewItemRecord("pearl", 2, nil)
		cmd := &ViewerCommand{
			Kind:        ViewerCommandDeposit,
			ViewerID:    "alex",
			Item:        &item,
			TimestampMs: time.Now().UnixMilli(),
		}
		require.NoError(t, client.PublishViewerCommand(ctx, cmd))

		select {
		case got := <-sub.Events():
			assert.Equal(t, ViewerCommandDeposit, got.Kind)
			assert.Equal(t, "alex", got.ViewerID)
			require.NotNil(t, got.Item)
			assert.Equal(t, "pearl", got.Item.Kind)
		case <-time.After(1 * time.Second):
			t.Fatal("timeout waiting for viewer command")
		}
	})

	t.Run("rejects malformed commands", func(t *testing.T) {
		err := client.PublishViewerCommand(ctx, &ViewerCommand{Kind: ViewerCommandOpen})
		assert.ErrorContains(t, err, "viewer ID cannot be empty")

		err = client.PublishViewerCommand(ctx, &ViewerCommand{Kind: ViewerCommandDeposit, ViewerID: "alex"})
		assert.ErrorContains(t, err, "requires a non-empty item")

		err = client.PublishViewerCommand(ctx, &ViewerCommand{Kind: "teleport", ViewerID: "alex"})
		assert.ErrorContains(t, err, "unknown viewer command kind")
	})
}

func TestWindowState(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	t.Run("not found before first write", func(t *testing.T) {
		_, err := client.GetWindowState(ctx)
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})

	t.Run("round trips through the hash", func(t *testing.T) {
		want := &WindowState{
			State:            WindowOpen,
			RemainingSeconds: 8,
			UpdatedAtMs:      time.Now().UnixMilli(),
		}
		require.NoError(t, client.SetWindowState(ctx, want))

		got, err := client.GetWindowState(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("rejects invalid state", func(t *testing.T) {
		err := client.SetWindowState(ctx, &WindowState{State: "ajar"})
		assert.ErrorContains(t, err, "unknown window state")
	})
}

func TestSubscriptionClose(t *testing.T) {
	client := setupTestClient(t)

	sub, err := client.SubscribeStoreEvents(context.Background())
	require.NoError(t, err)

	assert.NoError(t, sub.Close())
	// Close is idempotent.
	assert.NoError(t, sub.Close())

	// The events channel drains and closes.
	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(1 * time.Second):
		t.Fatal("events channel did not close")
	}
}

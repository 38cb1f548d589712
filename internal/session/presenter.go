package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dyluth/abyss/pkg/abyss"
)

// Presenter is the presentation boundary the session manager talks to.
// Render shows a frame to a viewer; a render error means the viewer is
// unreachable and the manager prunes the session. Deliver hands a taken
// record to the viewer; a deliver error means the viewer cannot receive it
// and the record is returned to the store. Dismiss tears the frame down.
type Presenter interface {
	Render(ctx context.Context, viewerID string, frame *Frame) error
	Deliver(ctx context.Context, viewerID string, item abyss.ItemRecord) error
	Dismiss(ctx context.Context, viewerID string)
}

// FramePayload is the JSON shape the Redis presenter publishes on the frame
// channel. Kind is "frame" for a render and "deliver" for a handed-over item.
type FramePayload struct {
	Kind  string            `json:"kind"`
	Frame *Frame            `json:"frame,omitempty"`
	Item  *abyss.ItemRecord `json:"item,omitempty"`
}

// RedisPresenter publishes frames and deliveries as frame events so remote
// surfaces can draw them. A dismissal is a frame event with no payload.
type RedisPresenter struct {
	client *abyss.Client
}

// NewRedisPresenter creates a presenter backed by the shared abyss client.
func NewRedisPresenter(client *abyss.Client) *RedisPresenter {
	return &RedisPresenter{client: client}
}

// Render implements Presenter.
func (p *RedisPresenter) Render(ctx context.Context, viewerID string, frame *Frame) error {
	payload, err := json.Marshal(&FramePayload{Kind: "frame", Frame: frame})
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	return p.client.PublishFrame(ctx, &abyss.FrameEvent{
		ViewerID:    viewerID,
		Frame:       payload,
		TimestampMs: time.Now().UnixMilli(),
	})
}

// Deliver implements Presenter.
func (p *RedisPresenter) Deliver(ctx context.Context, viewerID string, item abyss.ItemRecord) error {
	payload, err := json.Marshal(&FramePayload{Kind: "deliver", Item: &item})
	if err != nil {
		return fmt.Errorf("failed to marshal delivery: %w", err)
	}

	return p.client.PublishFrame(ctx, &abyss.FrameEvent{
		ViewerID:    viewerID,
		Frame:       payload,
		TimestampMs: time.Now().UnixMilli(),
	})
}

// Dismiss implements Presenter. Publish failures are swallowed: the session
// is gone either way.
func (p *RedisPresenter) Dismiss(ctx context.Context, viewerID string) {
	_ = p.client.PublishFrame(ctx, &abyss.FrameEvent{
		ViewerID:    viewerID,
		TimestampMs: time.Now().UnixMilli(),
	})
}

// Recorder is an in-memory Presenter for tests. Renders and deliveries are
// captured per viewer; RenderErr and DeliverErr inject failures.
type Recorder struct {
	mu         sync.Mutex
	Frames     map[string][]*Frame
	Deliveries map[string][]abyss.ItemRecord
	Dismissed  map[string]int
	RenderErr  map[string]error
	DeliverErr map[string]error
}

// NewRecorder creates an empty recorder presenter.
func NewRecorder() *Recorder {
	return &Recorder{
		Frames:     make(map[string][]*Frame),
		Deliveries: make(map[string][]abyss.ItemRecord),
		Dismissed:  make(map[string]int),
		RenderErr:  make(map[string]error),
		DeliverErr: make(map[string]error),
	}
}

// Render implements Presenter.
func (r *Recorder) Render(_ context.Context, viewerID string, frame *Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.RenderErr[viewerID]; err != nil {
		return err
	}
	r.Frames[viewerID] = append(r.Frames[viewerID], frame)
	return nil
}

// Deliver implements Presenter.
func (r *Recorder) Deliver(_ context.Context, viewerID string, item abyss.ItemRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.DeliverErr[viewerID]; err != nil {
		return err
	}
	r.Deliveries[viewerID] = append(r.Deliveries[viewerID], item)
	return nil
}

// Dismiss implements Presenter.
func (r *Recorder) Dismiss(_ context.Context, viewerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Dismissed[viewerID]++
}

// LastFrame returns the most recent frame rendered for a viewer, or nil.
func (r *Recorder) LastFrame(viewerID string) *Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := r.Frames[viewerID]
	if len(frames) == 0 {
		return nil
	}
	return frames[len(frames)-1]
}

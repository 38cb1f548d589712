package abyss

import (
	"encoding/json"
	"fmt"
)

// StoreEvent describes one committed store mutation as seen on the event
// stream. Events are observational only: by the time a subscriber decodes
// one, the store may have moved on.
type StoreEvent struct {
	Kind        MutationKind `json:"kind"`         // add, take, set or clear
	Delta       int          `json:"delta"`        // Net change in record count
	Count       int          `json:"count"`        // Record count after the mutation
	TimestampMs int64        `json:"timestamp_ms"` // Unix timestamp in milliseconds
}

// Validate checks if the StoreEvent has valid field values.
func (e *StoreEvent) Validate() error {
	switch e.Kind {
	case MutationAdd, MutationTake, MutationSet, MutationClear:
	default:
		return fmt.Errorf("unknown mutation kind: %q", e.Kind)
	}

	if e.Count < 0 {
		return fmt.Errorf("invalid count: must be >= 0, got %d", e.Count)
	}

	return nil
}

// NoticeEvent carries one rendered notice text. ViewerID is empty for
// broadcast notices and set for notices addressed to a single viewer.
// Rendering and localization happen before the event is published; the
// broker core never interprets the text.
type NoticeEvent struct {
	ViewerID    string `json:"viewer_id,omitempty"`
	Text        string `json:"text"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// Validate checks if the NoticeEvent has valid field values.
func (e *NoticeEvent) Validate() error {
	if e.Text == "" {
		return fmt.Errorf("notice text cannot be empty")
	}
	return nil
}

// FrameEvent carries one rendered viewer frame. The frame payload is opaque
// JSON produced by the presentation layer; subscribers that know the frame
// shape decode it themselves.
type FrameEvent struct {
	ViewerID    string          `json:"viewer_id"`
	Frame       json.RawMessage `json:"frame,omitempty"` // Empty when the frame was dismissed
	TimestampMs int64           `json:"timestamp_ms"`
}

// Validate checks if the FrameEvent has valid field values.
func (e *FrameEvent) Validate() error {
	if e.ViewerID == "" {
		return fmt.Errorf("frame event viewer ID cannot be empty")
	}

	if len(e.Frame) > 0 && !json.Valid(e.Frame) {
		return fmt.Errorf("frame payload is not valid JSON")
	}

	return nil
}

// ViewerCommandKind identifies the kind of viewer command.
type ViewerCommandKind string

const (
	// ViewerCommandOpen requests a session at the given page (default 0).
	ViewerCommandOpen ViewerCommandKind = "open"

	// ViewerCommandClose tears down the viewer's session.
	ViewerCommandClose ViewerCommandKind = "close"

	// ViewerCommandPage changes the viewer's current page.
	ViewerCommandPage ViewerCommandKind = "page"

	// ViewerCommandClick reports a raw click on the viewer's frame.
	ViewerCommandClick ViewerCommandKind = "click"

	// ViewerCommandDeposit adds a held item to the store.
	ViewerCommandDeposit ViewerCommandKind = "deposit"
)

// ViewerCommand is one request from an external command surface. The daemon
// subscribes to these and dispatches them to the session manager; the access
// window gate is checked there, not by the publisher.
type ViewerCommand struct {
	Kind        ViewerCommandKind `json:"kind"`
	ViewerID    string            `json:"viewer_id"`
	Page        int               `json:"page,omitempty"`      // For open and page commands
	FrameTag    string            `json:"frame_tag,omitempty"` // For click commands: capability tag of the clicked frame
	Slot        int               `json:"slot,omitempty"`      // For click commands
	Click       string            `json:"click,omitempty"`     // For click commands: raw click kind
	Item        *ItemRecord       `json:"item,omitempty"`      // Held item for click, payload for deposit
	TimestampMs int64             `json:"timestamp_ms"`
}

// Validate checks if the ViewerCommand has valid field values.
func (c *ViewerCommand) Validate() error {
	switch c.Kind {
	case ViewerCommandOpen, ViewerCommandClose, ViewerCommandPage,
		ViewerCommandClick, ViewerCommandDeposit:
	default:
		return fmt.Errorf("unknown viewer command kind: %q", c.Kind)
	}

	if c.ViewerID == "" {
		return fmt.Errorf("viewer ID cannot be empty")
	}

	if c.Page < 0 {
		return fmt.Errorf("invalid page: must be >= 0, got %d", c.Page)
	}

	if c.Kind == ViewerCommandDeposit && (c.Item == nil || c.Item.IsEmpty()) {
		return fmt.Errorf("deposit command requires a non-empty item")
	}

	return nil
}

// WindowStateName is the coarse access window state.
type WindowStateName string

const (
	// WindowOpen means new viewer sessions may be created.
	WindowOpen WindowStateName = "open"

	// WindowClosed means new viewer sessions are refused.
	WindowClosed WindowStateName = "closed"
)

// WindowState is the externally visible access window state, kept current in
// a Redis hash so command surfaces can gate without reaching the broker.
type WindowState struct {
	State            WindowStateName `json:"state"`
	RemainingSeconds int             `json:"remaining_seconds"`
	UpdatedAtMs      int64           `json:"updated_at_ms"`
}

// Validate checks if the WindowState has valid field values.
func (w *WindowState) Validate() error {
	switch w.State {
	case WindowOpen, WindowClosed:
	default:
		return fmt.Errorf("unknown window state: %q", w.State)
	}

	if w.RemainingSeconds < 0 {
		return fmt.Errorf("invalid remaining seconds: must be >= 0, got %d", w.RemainingSeconds)
	}

	return nil
}

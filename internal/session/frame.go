package session

import (
	"github.com/dyluth/abyss/pkg/abyss"

	"github.com/dyluth/abyss/internal/config"
)

// Button identifies a control-row navigation button.
type Button string

const (
	ButtonPrevious Button = "previous"
	ButtonNext     Button = "next"
	ButtonInfo     Button = "info"
	ButtonClose    Button = "close"
)

// Frame is one rendered page view for one viewer. The last row of Size slots
// is the control row; slots 0..Size-10 hold page content. Tag is the frame's
// capability token: clicks are only honored when they carry the tag of the
// viewer's live frame.
type Frame struct {
	Tag        string                   `json:"tag"`
	Title      string                   `json:"title"`
	Size       int                      `json:"size"`
	Page       int                      `json:"page"`
	TotalPages int                      `json:"total_pages"`
	ItemCount  int                      `json:"item_count"`
	Items      map[int]abyss.ItemRecord `json:"items"`   // content slot -> record
	Buttons    map[int]Button           `json:"buttons"` // absolute slot -> button
}

// buildFrame lays out one page of the store into a frame. Previous appears
// only when there is a page before this one, next only when there is a page
// after it; info and close appear whenever enabled.
func buildFrame(store *abyss.Store, tag string, page int, frameCfg *config.FrameConfig, navCfg *config.NavigationConfig) *Frame {
	capacity := frameCfg.ItemsPerPage()

	frame := &Frame{
		Tag:        tag,
		Title:      frameCfg.Title,
		Size:       frameCfg.Size,
		Page:       page,
		TotalPages: store.TotalPages(capacity),
		ItemCount:  store.Count(),
		Items:      make(map[int]abyss.ItemRecord),
		Buttons:    make(map[int]Button),
	}

	for slot, item := range store.Page(page, capacity) {
		frame.Items[slot] = item
	}

	controlRow := frameCfg.Size - 9
	if navCfg.Previous.Enabled && page > 0 {
		frame.Buttons[controlRow+navCfg.Previous.Slot] = ButtonPrevious
	}
	if navCfg.Next.Enabled && page < frame.TotalPages-1 {
		frame.Buttons[controlRow+navCfg.Next.Slot] = ButtonNext
	}
	if navCfg.Info.Enabled {
		frame.Buttons[controlRow+navCfg.Info.Slot] = ButtonInfo
	}
	if navCfg.Close.Enabled {
		frame.Buttons[controlRow+navCfg.Close.Slot] = ButtonClose
	}

	return frame
}

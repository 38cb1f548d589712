// Package config loads and validates abyss.yml, the broker's single
// configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Control row width: the last row of every frame is reserved for navigation.
const controlRowWidth = 9

// AbyssConfig represents the top-level abyss.yml configuration.
type AbyssConfig struct {
	Version    string            `yaml:"version"`
	Language   string            `yaml:"language,omitempty"` // Message catalog language, default "en"
	Debug      bool              `yaml:"debug,omitempty"`
	Window     *WindowConfig     `yaml:"window,omitempty"`
	Sweep      *SweepConfig      `yaml:"sweep,omitempty"`
	Frame      *FrameConfig      `yaml:"frame,omitempty"`
	Session    *SessionConfig    `yaml:"session,omitempty"`
	Navigation *NavigationConfig `yaml:"navigation,omitempty"`
}

// WindowConfig specifies the scheduled access window. When disabled the
// window is pinned open for the process lifetime.
type WindowConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds,omitempty"` // Seconds between window openings (default 300)
	DurationSeconds int  `yaml:"duration_seconds,omitempty"` // Seconds the window stays open (default 10)
	WarningSeconds  int  `yaml:"warning_seconds,omitempty"`  // Final band in which closing notices fire (default 5)
	WarningStride   int  `yaml:"warning_stride,omitempty"`   // Seconds between closing notices in the band (default 1)
}

// SweepConfig specifies the periodic ambient item sweep.
type SweepConfig struct {
	Enabled         bool     `yaml:"enabled"`
	IntervalSeconds int      `yaml:"interval_seconds,omitempty"` // Seconds between sweeps (default 60)
	ExcludedGroups  []string `yaml:"excluded_groups,omitempty"`  // Source groups never swept
	NotifyViewers   bool     `yaml:"notify_viewers"`             // Broadcast a collected notice after a non-empty sweep
}

// FrameConfig specifies the presentation frame every session renders into.
type FrameConfig struct {
	Size  int    `yaml:"size,omitempty"`  // Total slots, multiple of 9 (default 54); last row is the control row
	Title string `yaml:"title,omitempty"` // Frame title, may carry color codes
}

// SessionConfig specifies per-viewer session behavior. Unlike the window,
// the per-viewer countdown warns on every second of the final band: it is
// short enough that a stride setting would only ever skip one or two notices.
type SessionConfig struct {
	CloseAfterSeconds int `yaml:"close_after_seconds,omitempty"` // Per-viewer close countdown (default 10, -1 disables)
	WarningSeconds    int `yaml:"warning_seconds,omitempty"`     // Final band for per-viewer closing notices, one per second (default 5)
}

// NavigationConfig specifies the control-row buttons.
type NavigationConfig struct {
	Previous *ButtonConfig `yaml:"previous,omitempty"`
	Next     *ButtonConfig `yaml:"next,omitempty"`
	Info     *ButtonConfig `yaml:"info,omitempty"`
	Close    *ButtonConfig `yaml:"close,omitempty"`
}

// ButtonConfig specifies one navigation button. Slot is the offset within
// the control row (0-8).
type ButtonConfig struct {
	Enabled bool `yaml:"enabled"`
	Slot    int  `yaml:"slot"`
}

// Validate performs strict validation on the configuration and applies
// defaults to optional sections.
func (c *AbyssConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Language == "" {
		c.Language = "en"
	}

	if c.Window == nil {
		c.Window = &WindowConfig{Enabled: false}
	}
	if err := c.Window.validate(); err != nil {
		return err
	}

	if c.Sweep == nil {
		c.Sweep = &SweepConfig{Enabled: true, NotifyViewers: true}
	}
	if err := c.Sweep.validate(); err != nil {
		return err
	}

	if c.Frame == nil {
		c.Frame = &FrameConfig{}
	}
	if err := c.Frame.validate(); err != nil {
		return err
	}

	if c.Session == nil {
		c.Session = &SessionConfig{}
	}
	if err := c.Session.validate(); err != nil {
		return err
	}

	if c.Navigation == nil {
		c.Navigation = &NavigationConfig{}
	}
	if err := c.Navigation.validate(); err != nil {
		return err
	}

	return nil
}

func (w *WindowConfig) validate() error {
	if w.IntervalSeconds == 0 {
		w.IntervalSeconds = 300
	}
	if w.DurationSeconds == 0 {
		w.DurationSeconds = 10
	}
	if w.WarningSeconds == 0 {
		w.WarningSeconds = 5
	}
	if w.WarningStride == 0 {
		w.WarningStride = 1
	}

	if w.IntervalSeconds < 1 {
		return fmt.Errorf("window.interval_seconds must be >= 1, got %d", w.IntervalSeconds)
	}
	if w.DurationSeconds < 1 {
		return fmt.Errorf("window.duration_seconds must be >= 1, got %d", w.DurationSeconds)
	}
	if w.DurationSeconds >= w.IntervalSeconds {
		return fmt.Errorf("window.duration_seconds (%d) must be shorter than window.interval_seconds (%d)",
			w.DurationSeconds, w.IntervalSeconds)
	}
	if w.WarningSeconds < 0 {
		return fmt.Errorf("window.warning_seconds must be >= 0, got %d", w.WarningSeconds)
	}
	if w.WarningStride < 1 {
		return fmt.Errorf("window.warning_stride must be >= 1, got %d", w.WarningStride)
	}

	return nil
}

func (s *SweepConfig) validate() error {
	if s.IntervalSeconds == 0 {
		s.IntervalSeconds = 60
	}
	if s.IntervalSeconds < 1 {
		return fmt.Errorf("sweep.interval_seconds must be >= 1, got %d", s.IntervalSeconds)
	}

	seen := make(map[string]bool)
	for _, group := range s.ExcludedGroups {
		if group == "" {
			return fmt.Errorf("sweep.excluded_groups must not contain empty names")
		}
		if seen[group] {
			return fmt.Errorf("duplicate excluded group: %s", group)
		}
		seen[group] = true
	}

	return nil
}

func (f *FrameConfig) validate() error {
	if f.Size == 0 {
		f.Size = 54
	}
	if f.Title == "" {
		f.Title = "&8&lThe Abyss"
	}

	if f.Size%controlRowWidth != 0 {
		return fmt.Errorf("frame.size must be a multiple of %d, got %d", controlRowWidth, f.Size)
	}
	if f.Size < 2*controlRowWidth || f.Size > 54 {
		return fmt.Errorf("frame.size must be between %d and 54, got %d", 2*controlRowWidth, f.Size)
	}

	return nil
}

// ItemsPerPage returns the page capacity: the frame size minus the control
// row reserved for navigation.
func (f *FrameConfig) ItemsPerPage() int {
	return f.Size - controlRowWidth
}

func (s *SessionConfig) validate() error {
	if s.CloseAfterSeconds == 0 {
		s.CloseAfterSeconds = 10
	}
	if s.WarningSeconds == 0 {
		s.WarningSeconds = 5
	}

	if s.CloseAfterSeconds < -1 {
		return fmt.Errorf("session.close_after_seconds must be >= -1, got %d", s.CloseAfterSeconds)
	}
	if s.WarningSeconds < 0 {
		return fmt.Errorf("session.warning_seconds must be >= 0, got %d", s.WarningSeconds)
	}

	return nil
}

// CountdownDisabled reports whether the per-viewer close countdown is turned
// off (close_after_seconds: -1).
func (s *SessionConfig) CountdownDisabled() bool {
	return s.CloseAfterSeconds < 0
}

func (n *NavigationConfig) validate() error {
	if n.Previous == nil {
		n.Previous = &ButtonConfig{Enabled: true, Slot: 0}
	}
	if n.Info == nil {
		n.Info = &ButtonConfig{Enabled: true, Slot: 3}
	}
	if n.Close == nil {
		n.Close = &ButtonConfig{Enabled: true, Slot: 5}
	}
	if n.Next == nil {
		n.Next = &ButtonConfig{Enabled: true, Slot: 8}
	}

	buttons := map[string]*ButtonConfig{
		"previous": n.Previous,
		"info":     n.Info,
		"close":    n.Close,
		"next":     n.Next,
	}

	slotsSeen := make(map[int]string)
	for name, button := range buttons {
		if button.Slot < 0 || button.Slot >= controlRowWidth {
			return fmt.Errorf("navigation.%s.slot must be between 0 and %d, got %d",
				name, controlRowWidth-1, button.Slot)
		}
		if !button.Enabled {
			continue
		}
		if other, taken := slotsSeen[button.Slot]; taken {
			return fmt.Errorf("navigation buttons '%s' and '%s' share slot %d", other, name, button.Slot)
		}
		slotsSeen[button.Slot] = name
	}

	return nil
}

// Load reads and validates abyss.yml from the specified path.
func Load(path string) (*AbyssConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config AbyssConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

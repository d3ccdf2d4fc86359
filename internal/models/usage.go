package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/tidwall/gjson"
)

// Quota window identifiers returned by the usage endpoint
const (
	WindowFiveHour     = "five_hour"
	WindowSevenDay     = "seven_day"
	WindowSevenDayOpus = "seven_day_opus"
)

// KnownWindows lists the windows surfaced by the presentation layer, in display order
var KnownWindows = []string{WindowFiveHour, WindowSevenDay, WindowSevenDayOpus}

// ErrSnapshotNotObject is returned when a usage document is not a JSON object
var ErrSnapshotNotObject = errors.New("usage document is not a JSON object")

// UsageSnapshot is the opaque usage document returned by one fetch.
// Fields are only ever read defensively; the schema is not validated.
type UsageSnapshot struct {
	raw json.RawMessage
}

// UsageWindow is one quota window read out of a snapshot
type UsageWindow struct {
	Name        string     `json:"name"`
	Utilization float64    `json:"utilization"`
	ResetsAt    *time.Time `json:"resets_at,omitempty"`
}

// NewUsageSnapshot wraps a raw JSON document. It must be a JSON object.
func NewUsageSnapshot(raw []byte) (*UsageSnapshot, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("invalid JSON")
	}
	if !gjson.ParseBytes(raw).IsObject() {
		return nil, ErrSnapshotNotObject
	}
	buf := make([]byte, len(raw))
	copy(buf, raw)
	return &UsageSnapshot{raw: buf}, nil
}

// Raw returns the underlying document
func (s *UsageSnapshot) Raw() json.RawMessage {
	if s == nil {
		return nil
	}
	return s.raw
}

// MarshalJSON emits the document unchanged
func (s *UsageSnapshot) MarshalJSON() ([]byte, error) {
	if s == nil || len(s.raw) == 0 {
		return []byte("null"), nil
	}
	return s.raw, nil
}

// UnmarshalJSON accepts any JSON object
func (s *UsageSnapshot) UnmarshalJSON(data []byte) error {
	snap, err := NewUsageSnapshot(data)
	if err != nil {
		return err
	}
	s.raw = snap.raw
	return nil
}

// Get exposes a gjson path lookup for fields not modelled here
func (s *UsageSnapshot) Get(path string) gjson.Result {
	if s == nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(s.raw, path)
}

// Window reads a quota window. ok is false when the window is absent or null.
func (s *UsageSnapshot) Window(name string) (UsageWindow, bool) {
	w := s.Get(name)
	if !w.Exists() || !w.IsObject() {
		return UsageWindow{Name: name}, false
	}

	window := UsageWindow{
		Name:        name,
		Utilization: w.Get("utilization").Float(),
	}
	if resets := w.Get("resets_at"); resets.Type == gjson.String {
		if t, err := time.Parse(time.RFC3339, resets.String()); err == nil {
			window.ResetsAt = &t
		}
	}
	return window, true
}

// Utilization returns a window's utilization, 0 when absent
func (s *UsageSnapshot) Utilization(name string) float64 {
	w, _ := s.Window(name)
	return w.Utilization
}

// Windows returns every known window present in the snapshot
func (s *UsageSnapshot) Windows() []UsageWindow {
	var windows []UsageWindow
	for _, name := range KnownWindows {
		if w, ok := s.Window(name); ok {
			windows = append(windows, w)
		}
	}
	return windows
}

package models

import "time"

// Error kinds recorded in UsageState.ErrorKind
const (
	ErrorKindConfigMissing = "config_missing"
	ErrorKindNetwork       = "network"
	ErrorKindHTTPStatus    = "http_status"
	ErrorKindJSONDecode    = "json_decode"
	ErrorKindBrowser       = "browser"
)

// UsageState is the display state shared with presentation surfaces.
// Either Snapshot or Error is set once a cycle has completed; an error replaces
// the previous snapshot rather than leaving it as stale data.
type UsageState struct {
	Snapshot   *UsageSnapshot `json:"snapshot,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorKind  string         `json:"error_kind,omitempty"`
	Status     int            `json:"status,omitempty"`
	Configured bool           `json:"configured"`
	InFlight   bool           `json:"in_flight"`
	UpdatedAt  time.Time      `json:"updated_at,omitempty"` // last successful fetch
	CheckedAt  time.Time      `json:"checked_at,omitempty"` // last completed attempt
}

// Loading reports whether no cycle has completed yet
func (s UsageState) Loading() bool {
	return s.Snapshot == nil && s.Error == ""
}

// NeedsSettings reports whether the UI should open the settings flow
func (s UsageState) NeedsSettings() bool {
	return s.ErrorKind == ErrorKindConfigMissing
}

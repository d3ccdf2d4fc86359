package presentation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/usagebar/internal/models"
)

var now = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func snapshot(t *testing.T, raw string) *models.UsageSnapshot {
	t.Helper()
	snap, err := models.NewUsageSnapshot([]byte(raw))
	require.NoError(t, err)
	return snap
}

func labels(d Display) []string {
	var out []string
	for _, line := range d.Lines {
		if !line.Separator {
			out = append(out, line.Label)
		}
	}
	return out
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "8%", FormatPercent(8))
	assert.Equal(t, "12.5%", FormatPercent(12.5))
	assert.Equal(t, "0%", FormatPercent(0))
	assert.Equal(t, "100%", FormatPercent(100))
}

func TestFormatReset(t *testing.T) {
	at := func(d time.Duration) *time.Time {
		v := now.Add(d)
		return &v
	}

	tests := []struct {
		name     string
		resetsAt *time.Time
		want     string
	}{
		{"absent", nil, "N/A"},
		{"minutes", at(42*time.Minute + 30*time.Second), "0h 42m"},
		{"hours", at(4*time.Hour + 5*time.Minute), "4h 5m"},
		{"just under a day", at(23*time.Hour + 59*time.Minute), "23h 59m"},
		{"exactly a day", at(24 * time.Hour), "1d 0h"},
		{"days", at(6*24*time.Hour + 7*time.Hour + 30*time.Minute), "6d 7h"},
		{"past", at(-time.Hour), "0h 0m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatReset(tt.resetsAt, now))
		})
	}
}

func TestRender_Snapshot(t *testing.T) {
	updated := time.Date(2026, 10, 18, 8, 59, 30, 0, time.Local)
	state := models.UsageState{
		Configured: true,
		UpdatedAt:  updated,
		Snapshot: snapshot(t, `{
			"five_hour": {"utilization": 8, "resets_at": "2026-10-18T11:30:00Z"},
			"seven_day": {"utilization": 91, "resets_at": "2026-10-21T10:00:00Z"},
			"seven_day_opus": null
		}`),
	}

	d := Render(state, now)
	assert.Equal(t, "S:8% W:91%", d.Title)
	assert.Equal(t, []string{
		"Usage",
		"5-hour limit: 8%",
		"  Resets in: 2h 30m",
		"7-day limit: 91%",
		"  Resets in: 3d 1h",
		"Opus (7-day): 0%",
		"Last updated: 08:59:30",
		"Refresh now",
		"Settings",
		"Quit",
	}, labels(d))

	var actions []string
	for _, line := range d.Lines {
		if line.Action != "" {
			assert.True(t, line.Enabled)
			actions = append(actions, line.Action)
		}
	}
	assert.Equal(t, []string{ActionRefresh, ActionSettings, ActionQuit}, actions)
}

func TestRender_MissingWindowsReadAsZero(t *testing.T) {
	d := Render(models.UsageState{Snapshot: snapshot(t, `{}`)}, now)
	assert.Equal(t, "S:0% W:0%", d.Title)
	assert.Contains(t, labels(d), "  Resets in: N/A")
	assert.Contains(t, labels(d), "Last updated: N/A")
}

func TestRender_Loading(t *testing.T) {
	d := Render(models.UsageState{Configured: true, InFlight: true}, now)
	assert.Equal(t, TitleLoading, d.Title)
}

func TestRender_Error(t *testing.T) {
	d := Render(models.UsageState{
		Error:     "failed to fetch usage: HTTP status 403",
		ErrorKind: models.ErrorKindHTTPStatus,
		Status:    403,
	}, now)

	assert.Equal(t, TitleError, d.Title)
	assert.Contains(t, labels(d), "failed to fetch usage: HTTP status 403")
	assert.Contains(t, labels(d), "Refresh")
}

func TestRender_ConfigMissing(t *testing.T) {
	d := Render(models.UsageState{
		Error:     "no credentials configured",
		ErrorKind: models.ErrorKindConfigMissing,
	}, now)

	assert.Equal(t, TitleSetup, d.Title)
	assert.Contains(t, labels(d), "Settings")
}

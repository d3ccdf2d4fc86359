package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleUsage = `{
	"five_hour": {"utilization": 8, "resets_at": "2025-11-04T15:00:00+00:00"},
	"seven_day": {"utilization": 77.5, "resets_at": null},
	"seven_day_opus": null,
	"seven_day_oauth_apps": {"utilization": 1}
}`

func TestNewUsageSnapshot_RejectsNonObjects(t *testing.T) {
	_, err := NewUsageSnapshot([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrSnapshotNotObject)

	_, err = NewUsageSnapshot([]byte(`{"five_hour":`))
	assert.Error(t, err)
}

func TestUsageSnapshot_Window(t *testing.T) {
	snap, err := NewUsageSnapshot([]byte(sampleUsage))
	require.NoError(t, err)

	five, ok := snap.Window(WindowFiveHour)
	require.True(t, ok)
	assert.Equal(t, 8.0, five.Utilization)
	require.NotNil(t, five.ResetsAt)
	assert.True(t, five.ResetsAt.Equal(time.Date(2025, 11, 4, 15, 0, 0, 0, time.UTC)))

	seven, ok := snap.Window(WindowSevenDay)
	require.True(t, ok)
	assert.Equal(t, 77.5, seven.Utilization)
	assert.Nil(t, seven.ResetsAt)

	_, ok = snap.Window(WindowSevenDayOpus)
	assert.False(t, ok, "null window is absent")
	assert.Equal(t, 0.0, snap.Utilization(WindowSevenDayOpus))

	assert.Len(t, snap.Windows(), 2)
	assert.Equal(t, 1.0, snap.Get("seven_day_oauth_apps.utilization").Float())
}

func TestUsageSnapshot_MalformedFieldsReadAsAbsent(t *testing.T) {
	snap, err := NewUsageSnapshot([]byte(`{"five_hour": {"utilization": "high", "resets_at": "soon"}, "seven_day": 3}`))
	require.NoError(t, err)

	five, ok := snap.Window(WindowFiveHour)
	require.True(t, ok)
	assert.Equal(t, 0.0, five.Utilization)
	assert.Nil(t, five.ResetsAt)

	_, ok = snap.Window(WindowSevenDay)
	assert.False(t, ok)
}

func TestUsageSnapshot_JSONPassThrough(t *testing.T) {
	snap, err := NewUsageSnapshot([]byte(`{"five_hour":{"utilization":8},"extra":[1]}`))
	require.NoError(t, err)

	data, err := json.Marshal(struct {
		Snapshot *UsageSnapshot `json:"snapshot"`
	}{snap})
	require.NoError(t, err)
	assert.JSONEq(t, `{"snapshot":{"five_hour":{"utilization":8},"extra":[1]}}`, string(data))

	var nilSnap *UsageSnapshot
	assert.Nil(t, nilSnap.Raw())
	assert.Equal(t, 0.0, nilSnap.Utilization(WindowFiveHour))
}

func TestUsageState(t *testing.T) {
	assert.True(t, UsageState{}.Loading())
	assert.False(t, UsageState{Error: "boom"}.Loading())
	assert.True(t, UsageState{ErrorKind: ErrorKindConfigMissing, Error: "x"}.NeedsSettings())
	assert.False(t, UsageState{ErrorKind: ErrorKindNetwork, Error: "x"}.NeedsSettings())
}

func TestNewUsageRecord(t *testing.T) {
	snap, err := NewUsageSnapshot([]byte(sampleUsage))
	require.NoError(t, err)
	at := time.Date(2025, 11, 4, 12, 0, 0, 0, time.UTC)

	record := NewUsageRecord("id-1", "org", snap, at)
	assert.Equal(t, "id-1", record.ID)
	assert.Equal(t, "org", record.OrganizationID)
	assert.Equal(t, at, record.FetchedAt)
	assert.Equal(t, 8.0, record.FiveHour)
	assert.Equal(t, 77.5, record.SevenDay)
	assert.Equal(t, 0.0, record.SevenDayOpus)
	assert.JSONEq(t, sampleUsage, string(record.Raw))
}

func TestCredentialBundle_Names(t *testing.T) {
	bundle := &CredentialBundle{
		OrganizationID: "org",
		Cookies:        []Cookie{{Name: SessionCookieName, Value: "s"}, {Name: "other", Value: "v"}},
		Headers:        map[string]string{"x-b": "2", "x-a": "1"},
	}

	assert.Equal(t, "s", bundle.SessionKey())
	assert.Equal(t, []string{SessionCookieName, "other"}, bundle.CookieNames())
	assert.Equal(t, []string{"x-a", "x-b"}, bundle.HeaderNames())

	_, ok := bundle.Cookie("missing")
	assert.False(t, ok)
}

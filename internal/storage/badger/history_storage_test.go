package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/usagebar/internal/common"
	"github.com/ternarybob/usagebar/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(arbor.NewLogger(), &common.HistoryConfig{
		Enabled: true,
		Path:    filepath.Join(t.TempDir(), "history"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })
	return manager
}

func record(t *testing.T, id string, fetchedAt time.Time, fiveHour float64) *models.UsageRecord {
	t.Helper()
	snap, err := models.NewUsageSnapshot([]byte(fmt.Sprintf(`{"five_hour":{"utilization":%v},"seven_day":{"utilization":50}}`, fiveHour)))
	require.NoError(t, err)
	return models.NewUsageRecord(id, "abc-123", snap, fetchedAt)
}

func TestHistoryStorage_RecordAndList(t *testing.T) {
	history := newTestManager(t).HistoryStorage()
	ctx := context.Background()
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	require.NoError(t, history.Record(ctx, record(t, "r1", base, 10)))
	require.NoError(t, history.Record(ctx, record(t, "r3", base.Add(2*time.Minute), 30)))
	require.NoError(t, history.Record(ctx, record(t, "r2", base.Add(time.Minute), 20)))

	records, err := history.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "r3", records[0].ID)
	assert.Equal(t, "r2", records[1].ID)
	assert.Equal(t, "r1", records[2].ID)
	assert.Equal(t, float64(30), records[0].FiveHour)
	assert.Equal(t, float64(50), records[0].SevenDay)
	assert.Equal(t, "abc-123", records[0].OrganizationID)
	assert.JSONEq(t, `{"five_hour":{"utilization":30},"seven_day":{"utilization":50}}`, string(records[0].Raw))

	limited, err := history.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "r3", limited[0].ID)
}

func TestHistoryStorage_RecordRequiresID(t *testing.T) {
	history := newTestManager(t).HistoryStorage()
	assert.Error(t, history.Record(context.Background(), record(t, "", time.Now(), 1)))
}

func TestHistoryStorage_Prune(t *testing.T) {
	history := newTestManager(t).HistoryStorage()
	ctx := context.Background()
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, history.Record(ctx, record(t, fmt.Sprintf("r%d", i), base.Add(time.Duration(i)*time.Hour), float64(i))))
	}

	removed, err := history.Prune(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	records, err := history.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "r2", records[2].ID)

	removed, err = history.Prune(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestNewBadgerDB_ResetOnStartup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history")
	logger := arbor.NewLogger()
	ctx := context.Background()

	first, err := NewManager(logger, &common.HistoryConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, first.HistoryStorage().Record(ctx, record(t, "r1", time.Now(), 1)))
	require.NoError(t, first.Close())

	second, err := NewManager(logger, &common.HistoryConfig{Path: path, ResetOnStartup: true})
	require.NoError(t, err)
	defer second.Close()

	records, err := second.HistoryStorage().List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNewBadgerDB_EmptyPath(t *testing.T) {
	_, err := NewBadgerDB(arbor.NewLogger(), &common.HistoryConfig{})
	assert.Error(t, err)
}

package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/usagebar/internal/models"
)

// HistoryStorage keeps successful usage snapshots over time
type HistoryStorage interface {
	// Record appends a snapshot
	Record(ctx context.Context, record *models.UsageRecord) error

	// List returns the most recent records, newest first
	List(ctx context.Context, limit int) ([]*models.UsageRecord, error)

	// Prune deletes records fetched before the cutoff and returns the count removed
	Prune(ctx context.Context, before time.Time) (int, error)
}

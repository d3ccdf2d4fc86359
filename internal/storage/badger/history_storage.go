package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/usagebar/internal/interfaces"
	"github.com/ternarybob/usagebar/internal/models"
)

// DefaultHistoryLimit applies when List is called with a non-positive limit
const DefaultHistoryLimit = 100

// HistoryStorage implements interfaces.HistoryStorage for Badger
type HistoryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewHistoryStorage creates a new HistoryStorage instance
func NewHistoryStorage(db *BadgerDB, logger arbor.ILogger) interfaces.HistoryStorage {
	return &HistoryStorage{
		db:     db,
		logger: logger,
	}
}

// Record stores one snapshot keyed by its record id
func (s *HistoryStorage) Record(ctx context.Context, record *models.UsageRecord) error {
	if record.ID == "" {
		return fmt.Errorf("usage record ID is required")
	}
	if err := s.db.Store().Upsert(record.ID, record); err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// List returns the most recent records, newest first
func (s *HistoryStorage) List(ctx context.Context, limit int) ([]*models.UsageRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var records []models.UsageRecord
	query := badgerhold.Where("ID").Ne("").SortBy("FetchedAt").Reverse().Limit(limit)
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list usage history: %w", err)
	}

	result := make([]*models.UsageRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

// Prune deletes records fetched before the cutoff
func (s *HistoryStorage) Prune(ctx context.Context, before time.Time) (int, error) {
	query := badgerhold.Where("FetchedAt").Lt(before)

	count, err := s.db.Store().Count(&models.UsageRecord{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count expired usage history: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.db.Store().DeleteMatching(&models.UsageRecord{}, badgerhold.Where("FetchedAt").Lt(before)); err != nil {
		return 0, fmt.Errorf("failed to prune usage history: %w", err)
	}
	return int(count), nil
}

package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/usagebar/internal/common"
	"github.com/ternarybob/usagebar/internal/interfaces"
)

// Manager owns the Badger connection and the storages built on it
type Manager struct {
	db      *BadgerDB
	history interfaces.HistoryStorage
	logger  arbor.ILogger
}

// NewManager opens the database and creates its storages
func NewManager(logger arbor.ILogger, config *common.HistoryConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:      db,
		history: NewHistoryStorage(db, logger),
		logger:  logger,
	}

	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

// HistoryStorage returns the usage history storage
func (m *Manager) HistoryStorage() interfaces.HistoryStorage {
	return m.history
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

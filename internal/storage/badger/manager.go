package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
)

// Manager bundles the stores that share one Badger connection.
type Manager struct {
	db       *BadgerDB
	seen     interfaces.SeenStore
	state    interfaces.StateStore
	analysis interfaces.AnalysisCache
	logger   arbor.ILogger
}

// NewManager opens the database and wires the stores.
func NewManager(logger arbor.ILogger, config *common.BadgerConfig, seenTTLDays int) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:       db,
		seen:     NewSeenStore(db, logger, seenTTLDays),
		state:    NewStateStore(db, logger),
		analysis: NewAnalysisCache(db, logger),
		logger:   logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// SeenStore returns the persistent fingerprint set.
func (m *Manager) SeenStore() interfaces.SeenStore {
	return m.seen
}

// StateStore returns the operational state store.
func (m *Manager) StateStore() interfaces.StateStore {
	return m.state
}

// AnalysisCache returns the LLM analysis cache.
func (m *Manager) AnalysisCache() interfaces.AnalysisCache {
	return m.analysis
}

// RunGC compacts the value log. Safe to call while the stores are serving.
func (m *Manager) RunGC() int {
	return m.db.RunGC()
}

// Close closes the shared database connection.
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

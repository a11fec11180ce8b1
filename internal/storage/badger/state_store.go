package badger

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// Key prefixes keep the state record families apart in the shared store.
const (
	feedStatePrefix = "feedstate:"
	deferredPrefix  = "deferred:"
	costDayPrefix   = "costday:"
)

// StateStore persists operational state that must survive restarts.
type StateStore struct {
	db     *BadgerDB
	logger arbor.ILogger
}

var _ interfaces.StateStore = (*StateStore)(nil)

// NewStateStore creates a state store on the shared connection.
func NewStateStore(db *BadgerDB, logger arbor.ILogger) *StateStore {
	return &StateStore{db: db, logger: logger}
}

// GetFeedState returns the conditional-GET validators for a source, or nil
// when the source has not been fetched before.
func (s *StateStore) GetFeedState(source string) (*models.FeedState, error) {
	var state models.FeedState
	err := s.db.Store().Get(feedStatePrefix+source, &state)
	if err == badgerhold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed state: %w", err)
	}
	return &state, nil
}

// SaveFeedState upserts the validators after a fetch.
func (s *StateStore) SaveFeedState(state *models.FeedState) error {
	if err := s.db.Store().Upsert(feedStatePrefix+state.Source, state); err != nil {
		return fmt.Errorf("failed to save feed state: %w", err)
	}
	return nil
}

// SaveDeferred persists items pushed past the per-cycle alert cap.
func (s *StateStore) SaveDeferred(items []*models.DeferredItem) error {
	for _, item := range items {
		if err := s.db.Store().Upsert(deferredPrefix+item.Fingerprint, item); err != nil {
			return fmt.Errorf("failed to save deferred item: %w", err)
		}
	}
	return nil
}

// TakeDeferred returns all deferred items and removes them, so a crash
// between cycles replays them rather than losing them.
func (s *StateStore) TakeDeferred() ([]*models.DeferredItem, error) {
	var stored []models.DeferredItem
	if err := s.db.Store().Find(&stored, nil); err != nil {
		return nil, fmt.Errorf("failed to load deferred items: %w", err)
	}

	items := make([]*models.DeferredItem, 0, len(stored))
	for i := range stored {
		if err := s.db.Store().Delete(deferredPrefix+stored[i].Fingerprint, &models.DeferredItem{}); err != nil {
			s.logger.Warn().Err(err).Str("fingerprint", stored[i].Fingerprint).Msg("Failed to remove deferred item")
			continue
		}
		items = append(items, &stored[i])
	}
	return items, nil
}

// GetCostDay returns the spend accumulator for a UTC day, creating a zeroed
// one when the day has no record yet.
func (s *StateStore) GetCostDay(day string) (*models.CostDay, error) {
	var cost models.CostDay
	err := s.db.Store().Get(costDayPrefix+day, &cost)
	if err == badgerhold.ErrNotFound {
		return &models.CostDay{Day: day, UpdatedAt: time.Now().UTC()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cost day: %w", err)
	}
	return &cost, nil
}

// SaveCostDay upserts the spend accumulator.
func (s *StateStore) SaveCostDay(cost *models.CostDay) error {
	cost.UpdatedAt = time.Now().UTC()
	if err := s.db.Store().Upsert(costDayPrefix+cost.Day, cost); err != nil {
		return fmt.Errorf("failed to save cost day: %w", err)
	}
	return nil
}

// Close is a no-op; the shared BadgerDB connection is closed by its owner.
func (s *StateStore) Close() error {
	return nil
}

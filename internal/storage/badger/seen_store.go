package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SeenStore implements the persistent fingerprint set on BadgerDB.
// Reads are concurrent; Badger serializes writes internally. When a write
// keeps failing the fingerprint is held in an in-memory overlay so dedup
// degrades instead of double-alerting within the process lifetime.
type SeenStore struct {
	db     *BadgerDB
	logger arbor.ILogger
	ttl    time.Duration

	fallbackMu sync.RWMutex
	fallback   map[string]time.Time
}

var _ interfaces.SeenStore = (*SeenStore)(nil)

// NewSeenStore creates a seen-store with the configured TTL.
func NewSeenStore(db *BadgerDB, logger arbor.ILogger, ttlDays int) *SeenStore {
	if ttlDays <= 0 {
		ttlDays = 7
	}
	return &SeenStore{
		db:       db,
		logger:   logger,
		ttl:      time.Duration(ttlDays) * 24 * time.Hour,
		fallback: make(map[string]time.Time),
	}
}

// Seen reports whether the fingerprint was alerted within the TTL.
// An unreadable record counts as not seen rather than failing the cycle.
func (s *SeenStore) Seen(fingerprint string) (bool, error) {
	s.fallbackMu.RLock()
	_, inFallback := s.fallback[fingerprint]
	s.fallbackMu.RUnlock()
	if inFallback {
		return true, nil
	}

	var record models.SeenRecord
	err := s.db.Store().Get(fingerprint, &record)
	if err == badgerhold.ErrNotFound {
		return false, nil
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("fingerprint", fingerprint).Msg("Unreadable seen record, treating as not seen")
		return false, nil
	}

	if record.Expired(time.Now().UTC(), s.ttl) {
		return false, nil
	}
	return true, nil
}

// Mark records a fingerprint after a successful alert post. A failed write
// is retried once; on persistent failure the fingerprint goes into the
// in-memory overlay and a critical log is emitted.
func (s *SeenStore) Mark(ctx context.Context, record *models.SeenRecord) error {
	if record.FirstSeenAt.IsZero() {
		record.FirstSeenAt = time.Now().UTC()
	}

	err := s.db.Store().Upsert(record.Fingerprint, record)
	if err != nil {
		s.logger.Warn().Err(err).Str("fingerprint", record.Fingerprint).Msg("Seen-store write failed, retrying")
		err = s.db.Store().Upsert(record.Fingerprint, record)
	}
	if err != nil {
		s.fallbackMu.Lock()
		s.fallback[record.Fingerprint] = record.FirstSeenAt
		s.fallbackMu.Unlock()
		s.logger.Error().Err(err).Str("fingerprint", record.Fingerprint).
			Msg("CRITICAL: seen-store write failed twice, dedup degraded to in-memory")
		return &common.StoreError{Op: "mark", Err: err}
	}
	return nil
}

// PurgeExpired removes records older than the TTL and clears the stale
// half of the in-memory overlay.
func (s *SeenStore) PurgeExpired(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.ttl)

	var expired []models.SeenRecord
	if err := s.db.Store().Find(&expired, badgerhold.Where("FirstSeenAt").Lt(cutoff)); err != nil {
		return 0, &common.StoreError{Op: "purge_find", Err: err}
	}

	purged := 0
	for i := range expired {
		if ctx.Err() != nil {
			return purged, ctx.Err()
		}
		if err := s.db.Store().Delete(expired[i].Fingerprint, &models.SeenRecord{}); err != nil {
			s.logger.Warn().Err(err).Str("fingerprint", expired[i].Fingerprint).Msg("Failed to purge seen record")
			continue
		}
		purged++
	}

	s.fallbackMu.Lock()
	for fp, seenAt := range s.fallback {
		if seenAt.Before(cutoff) {
			delete(s.fallback, fp)
		}
	}
	s.fallbackMu.Unlock()

	if purged > 0 {
		s.logger.Debug().Int("purged", purged).Msg("Purged expired seen records")
	}
	return purged, nil
}

// Count returns the number of persisted records, live or expired.
func (s *SeenStore) Count() (int, error) {
	count, err := s.db.Store().Count(&models.SeenRecord{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count seen records: %w", err)
	}
	return int(count), nil
}

// Close is a no-op; the shared BadgerDB connection is closed by its owner.
func (s *SeenStore) Close() error {
	return nil
}

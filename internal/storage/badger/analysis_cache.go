package badger

import (
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

const analysisPrefix = "analysis:"

// AnalysisCache persists LLM analyses keyed by document fingerprint so a
// replayed or amended filing costs nothing.
type AnalysisCache struct {
	db     *BadgerDB
	logger arbor.ILogger
}

var _ interfaces.AnalysisCache = (*AnalysisCache)(nil)

// NewAnalysisCache creates an analysis cache on the shared connection.
func NewAnalysisCache(db *BadgerDB, logger arbor.ILogger) *AnalysisCache {
	return &AnalysisCache{db: db, logger: logger}
}

// Get returns the cached analysis when present and younger than ttl.
func (c *AnalysisCache) Get(docFingerprint string, ttl time.Duration) (*models.Analysis, bool) {
	var entry models.AnalysisCacheEntry
	err := c.db.Store().Get(analysisPrefix+docFingerprint, &entry)
	if err == badgerhold.ErrNotFound {
		return nil, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("fingerprint", docFingerprint).Msg("Unreadable analysis cache entry")
		return nil, false
	}
	if entry.Expired(time.Now().UTC(), ttl) {
		return nil, false
	}
	if entry.Analysis != nil {
		entry.Analysis.FromCache = true
	}
	return entry.Analysis, true
}

// Put upserts an analysis entry.
func (c *AnalysisCache) Put(entry *models.AnalysisCacheEntry) error {
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now().UTC()
	}
	return c.db.Store().Upsert(analysisPrefix+entry.DocFingerprint, entry)
}

// Purge removes entries older than ttl and returns the count removed.
func (c *AnalysisCache) Purge(ttl time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-ttl)

	var expired []models.AnalysisCacheEntry
	if err := c.db.Store().Find(&expired, badgerhold.Where("CachedAt").Lt(cutoff)); err != nil {
		return 0, err
	}

	purged := 0
	for i := range expired {
		if err := c.db.Store().Delete(analysisPrefix+expired[i].DocFingerprint, &models.AnalysisCacheEntry{}); err != nil {
			continue
		}
		purged++
	}
	return purged, nil
}

// Close is a no-op; the shared BadgerDB connection is closed by its owner.
func (c *AnalysisCache) Close() error {
	return nil
}

package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/nuntius/internal/models"
)

// SeenStore is the persistent fingerprint set that prevents re-alerting.
// Safe for many concurrent readers and occasional writers. Marks happen
// only after a successful webhook post, never at intake.
type SeenStore interface {
	// Seen reports whether the fingerprint was alerted within the TTL.
	// An unreadable record is treated as not seen.
	Seen(fingerprint string) (bool, error)

	// Mark records a fingerprint after a successful alert post.
	Mark(ctx context.Context, record *models.SeenRecord) error

	// PurgeExpired removes records older than the TTL and returns the
	// count removed. Callers amortize this to at most once per hour.
	PurgeExpired(ctx context.Context) (int, error)

	// Count returns the live record count.
	Count() (int, error)

	Close() error
}

// StateStore persists small operational state that must survive restarts:
// conditional-GET validators, deferred items and the daily LLM spend.
type StateStore interface {
	GetFeedState(source string) (*models.FeedState, error)
	SaveFeedState(state *models.FeedState) error

	// Deferred items pushed past the per-cycle alert cap.
	SaveDeferred(items []*models.DeferredItem) error
	TakeDeferred() ([]*models.DeferredItem, error)

	GetCostDay(day string) (*models.CostDay, error)
	SaveCostDay(cost *models.CostDay) error

	Close() error
}

// AnalysisCache stores LLM analyses keyed by document fingerprint so a
// refiled or replayed document costs nothing.
type AnalysisCache interface {
	Get(docFingerprint string, ttl time.Duration) (*models.Analysis, bool)
	Put(entry *models.AnalysisCacheEntry) error
	Purge(ttl time.Duration) (int, error)
	Close() error
}

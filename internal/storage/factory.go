package storage

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/storage/badger"
)

// NewManager opens the embedded store described by config.
func NewManager(logger arbor.ILogger, config *common.Config) (*badger.Manager, error) {
	return badger.NewManager(logger, &config.Storage.Badger, config.Seen.TTLDays)
}

package storage

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/psuscan/internal/common"
	"github.com/ternarybob/psuscan/internal/interfaces"
	"github.com/ternarybob/psuscan/internal/storage/badger"
)

// NewStorageManager opens the result archive, or returns nil when it is disabled
func NewStorageManager(logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	if !config.Storage.Badger.Enabled {
		logger.Debug().Msg("Result archive disabled")
		return nil, nil
	}
	return badger.NewManager(logger, &config.Storage.Badger)
}

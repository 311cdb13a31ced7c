package cache

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// New assembles a TileCache from configuration. mode selects the memory
// tier ("memory" or "disabled"); an empty dir disables the disk tier.
func New(mode string, memBudget int64, dir string, diskBudget int64, diskMaxAge time.Duration, log *zap.Logger) (*TileCache, error) {
	var mem Memory
	switch mode {
	case "memory", "":
		log.Info("using in-memory tile cache", zap.Int64("budget_bytes", memBudget))
		mem = NewMemoryCache(memBudget, log)
	case "disabled":
		log.Info("in-memory tile cache disabled")
		mem = NewNoopCache()
	default:
		return nil, fmt.Errorf("unknown cache mode: %s (supported: memory, disabled)", mode)
	}

	var disk *DiskCache
	if dir != "" {
		var err error
		disk, err = NewDiskCache(dir, diskBudget, diskMaxAge, log)
		if err != nil {
			return nil, err
		}
		log.Info("using disk tile cache",
			zap.String("dir", dir),
			zap.Int64("budget_bytes", diskBudget),
			zap.Duration("max_age", diskMaxAge),
		)
	}

	return NewTileCache(mem, disk, log), nil
}

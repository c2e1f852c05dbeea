package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/linkdeck/internal/logger"
)

const (
	// DefaultSweepInterval is used when no interval is configured
	DefaultSweepInterval = time.Minute
)

// Sweepable evicts entries that are expired at now and reports how many went.
type Sweepable interface {
	Sweep(now time.Time) int
}

// CacheSweeper periodically evicts expired retrieval cache entries so memory
// stays bounded even for keys nobody reads again.
type CacheSweeper struct {
	target   Sweepable
	logger   logger.Logger
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
}

// NewCacheSweeper creates a new cache sweeper
func NewCacheSweeper(target Sweepable, log logger.Logger, interval time.Duration) *CacheSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	return &CacheSweeper{
		target:   target,
		logger:   log,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep
func (cs *CacheSweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(cs.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cs.Sweep()
			case <-cs.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the sweeper
func (cs *CacheSweeper) Stop() {
	close(cs.stopCh)
}

// Sweep runs one eviction pass and returns the number of removed entries
func (cs *CacheSweeper) Sweep() int {
	removed := cs.target.Sweep(cs.now())

	if removed > 0 {
		cs.logger.Info("cache sweep completed",
			logger.Int("evicted", removed))
	} else {
		cs.logger.Debug("no cache entries to evict")
	}

	return removed
}

package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/linkdeck/internal/logger"
)

// Refresher re-fetches upstream data into the retrieval cache.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// CatalogWarmer keeps the retrieval cache populated: once at start, then on
// every tick (if an interval is set) and on every manual trigger.
type CatalogWarmer struct {
	target        Refresher
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewCatalogWarmer creates a new warmer. manualTrigger should be buffered
// (capacity 1) so that a pending request is coalesced rather than queued.
func NewCatalogWarmer(
	target Refresher,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *CatalogWarmer {
	if manualTrigger == nil {
		manualTrigger = make(chan struct{}, 1)
	}

	return &CatalogWarmer{
		target:        target,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start warms the cache once and then serves ticks and triggers in the background.
// A failed initial warm is logged; the first request will fetch on demand.
func (cw *CatalogWarmer) Start(ctx context.Context) error {
	if err := cw.Warm(ctx); err != nil {
		cw.logger.Warn("initial catalog warm failed",
			logger.Error(err))
	}

	var tick <-chan time.Time
	var ticker *time.Ticker
	if cw.interval > 0 {
		ticker = time.NewTicker(cw.interval)
		tick = ticker.C
	}

	go func() {
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-tick:
				if err := cw.Warm(ctx); err != nil {
					cw.logger.Error("failed to warm catalog",
						logger.Error(err))
				}
			case <-cw.manualTrigger:
				cw.logger.Info("manual refresh triggered")
				if err := cw.Warm(ctx); err != nil {
					cw.logger.Error("failed to warm catalog",
						logger.Error(err))
				}
			case <-cw.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the warmer
func (cw *CatalogWarmer) Stop() {
	close(cw.stopCh)
}

// Trigger requests a background refresh. It returns false when one is
// already pending.
func (cw *CatalogWarmer) Trigger() bool {
	select {
	case cw.manualTrigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Warm refreshes the catalog once
func (cw *CatalogWarmer) Warm(ctx context.Context) error {
	start := time.Now()
	if err := cw.target.Refresh(ctx); err != nil {
		return err
	}

	cw.logger.Debug("catalog warmed",
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

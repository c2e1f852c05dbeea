// Package redis opens the optional connection backing the shared snapshot store.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkdeck/internal/config"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
)

// backoff is the retry policy while waiting for Redis to come up.
type backoff struct {
	initial   time.Duration
	max       time.Duration
	ping      time.Duration
	total     time.Duration
	warnAfter int
}

func (b backoff) validate() error {
	switch {
	case b.total <= 0:
		return fmt.Errorf("connect_timeout must be > 0, got %v", b.total)
	case b.initial <= 0:
		return fmt.Errorf("retry_interval must be > 0, got %v", b.initial)
	case b.max <= 0:
		return fmt.Errorf("max_wait must be > 0, got %v", b.max)
	case b.ping <= 0:
		return fmt.Errorf("ping_timeout must be > 0, got %v", b.ping)
	case b.warnAfter < 0:
		return fmt.Errorf("warn_threshold must be >= 0, got %d", b.warnAfter)
	}
	return nil
}

// next doubles wait, capped at max.
func (b backoff) next(wait time.Duration) time.Duration {
	return min(wait*2, b.max)
}

// Connect dials Redis and pings it with exponential backoff until
// cfg.ConnectTimeout runs out or ctx is cancelled.
func Connect(ctx context.Context, cfg config.Redis, log logger.Logger) (*redis.Client, error) {
	policy := backoff{
		initial:   cfg.RetryInterval,
		max:       cfg.MaxWait,
		ping:      cfg.PingTimeout,
		total:     cfg.ConnectTimeout,
		warnAfter: cfg.WarnThreshold,
	}
	if err := policy.validate(); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	if err := waitReady(ctx, client, cfg.Addr, policy, log); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func waitReady(ctx context.Context, client *redis.Client, addr string, policy backoff, log logger.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, policy.total)
	defer cancel()

	log.Info("connecting to redis",
		logger.String("addr", addr),
		logger.Duration("timeout", policy.total))

	start := time.Now()
	wait := policy.initial
	for attempt := 1; ; attempt++ {
		pingCtx, pingCancel := context.WithTimeout(ctx, policy.ping)
		err := client.Ping(pingCtx).Err()
		pingCancel()

		if err == nil {
			if attempt > 1 {
				log.Warn("connected to redis after retry",
					logger.String("addr", addr),
					logger.Int("attempts", attempt),
					logger.Duration("elapsed", time.Since(start)))
			} else {
				log.Info("connected to redis", logger.String("addr", addr))
			}
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Error("redis unavailable",
				logger.String("addr", addr),
				logger.Int("attempts", attempt),
				logger.Error(err))
			return fmt.Errorf("redis unavailable at %s after %d attempts: %w", addr, attempt, err)
		case <-timer.C:
		}

		fields := []logger.Field{
			logger.String("addr", addr),
			logger.Int("attempt", attempt),
			logger.Duration("next_retry_in", wait),
			logger.Error(err),
		}
		if attempt <= policy.warnAfter {
			log.Warn("redis connection failed, retrying", fields...)
		} else {
			log.Error("redis still unavailable, retrying", fields...)
		}
		wait = policy.next(wait)
	}
}

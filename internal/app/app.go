package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkdeck/internal/catalog"
	"github.com/MrSnakeDoc/linkdeck/internal/config"
	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/redis"
	"github.com/MrSnakeDoc/linkdeck/internal/scheduler"
	"github.com/MrSnakeDoc/linkdeck/internal/sources/linkding"
	redisstore "github.com/MrSnakeDoc/linkdeck/internal/store/redis"
	"github.com/MrSnakeDoc/linkdeck/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	catalog     *catalog.Service
	warmer      *scheduler.CatalogWarmer
	sweeper     *scheduler.CacheSweeper
}

// New wires the service. Redis is optional, but once configured it must be
// reachable within its connect timeout.
func New(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	var redisClient *goredis.Client
	if cfg.Redis.Enabled() {
		rc, err := redis.Connect(ctx, cfg.Redis, loggerClient.With(logger.String("component", "redis")))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		redisClient = rc
		loggerClient.Info("shared snapshot store enabled",
			logger.String("addr", cfg.Redis.Addr))
	} else {
		loggerClient.Info("redis not configured, snapshots stay in process")
	}

	cat, err := NewCatalog(cfg, loggerClient, redisClient)
	if err != nil {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, err
	}

	// Capacity 1: a second refresh request while one is queued is coalesced.
	refreshTrigger := make(chan struct{}, 1)
	warmer := scheduler.NewCatalogWarmer(cat, loggerClient.With(logger.String("component", "warmer")), cfg.WarmInterval, refreshTrigger)
	sweeper := scheduler.NewCacheSweeper(cat, loggerClient.With(logger.String("component", "sweeper")), cfg.CacheSweepInterval)

	d := BuildDeps(cfg, loggerClient, cat, redisClient, warmer.Trigger)
	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		catalog:     cat,
		warmer:      warmer,
		sweeper:     sweeper,
	}, nil
}

// NewCatalog builds the retrieval pipeline against the configured upstream.
// A non-nil redisClient adds the shared snapshot store behind both caches.
func NewCatalog(cfg *config.Config, loggerClient logger.Logger, redisClient *goredis.Client) (*catalog.Service, error) {
	client, err := linkding.NewClient(linkding.Options{
		BaseURL:         cfg.APIURL,
		Token:           cfg.APIToken,
		Timeout:         cfg.UpstreamTimeout,
		InitialPageSize: cfg.InitialPageSize,
		BatchSize:       cfg.BatchSize,
		MaxParallel:     cfg.MaxParallelBatches,
		TagPageSize:     cfg.TagPageSize,
		Logger:          loggerClient.With(logger.String("component", "linkding")),
	})
	if err != nil {
		return nil, &config.ConfigurationError{Reason: err.Error()}
	}

	opts := catalog.Options{
		Upstream: client,
		TTL:      cfg.CacheTTL,
		Locale:   cfg.Lang,
		Logger:   loggerClient.With(logger.String("component", "catalog")),
	}
	if redisClient != nil {
		opts.SnapshotBacking = redisstore.NewStore[*domain.Snapshot](redisClient)
		opts.TagBacking = redisstore.NewStore[[]domain.Tag](redisClient)
	}
	return catalog.New(opts), nil
}

// BuildDeps collects what the HTTP layer needs. redisClient may be nil.
func BuildDeps(cfg *config.Config, loggerClient logger.Logger, cat deps.Catalog, redisClient *goredis.Client, refresh func() bool) deps.Deps {
	return deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Build:          version.Get(),
		TimeNow:        time.Now,
		AllowedHosts:   cfg.AllowedHosts,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		CORSOrigins:    cfg.CORSOrigins,
		TrustProxy:     cfg.TrustProxy,
		RateBurst:      cfg.RateBurst,
		RatePerMin:     cfg.RatePerMin,
		Catalog:        cat,
		RedisClient:    redisClient,
		RefreshTrigger: refresh,
		PageSize:       cfg.PageSize,
		MaxPageSize:    cfg.MaxPageSize,
		CacheTTL:       cfg.CacheTTL,
	}
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts down.
func (a *App) Run(ctx context.Context) error {
	build := version.Get()
	a.logger.Infof("🚀 Starting linkdeck %s on %s", build.Version, a.cfg.ListenPort)
	a.logger.Info(build.String(),
		logger.String("upstream", a.cfg.APIURL),
		logger.Duration("cache_ttl", a.cfg.CacheTTL))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// Warm in the background so /healthz answers while the first fetch runs.
	go func() {
		if err := a.warmer.Start(ctx); err != nil {
			a.logger.Error("failed to start catalog warmer", logger.Error(err))
		}
	}()
	a.logger.Info("catalog warmer started",
		logger.Duration("interval", a.cfg.WarmInterval))

	if err := a.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start cache sweeper: %w", err)
	}
	a.logger.Info("cache sweeper started",
		logger.Duration("interval", a.cfg.CacheSweepInterval))

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		a.shutdownBackground()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		a.shutdownBackground()
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.shutdownBackground()
	a.logger.Info("✅ linkdeck stopped cleanly")
	return nil
}

func (a *App) shutdownBackground() {
	a.warmer.Stop()
	a.sweeper.Stop()
	a.catalog.Close()

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}
}

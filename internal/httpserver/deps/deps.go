package deps

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkdeck/internal/catalog"
	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/filter"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/pagination"
	"github.com/MrSnakeDoc/linkdeck/internal/version"
)

// Catalog is the retrieval pipeline as seen by the handlers.
type Catalog interface {
	List(ctx context.Context, c domain.Criteria, size int) (pagination.Page[domain.Bookmark], error)
	Groups(ctx context.Context, c domain.Criteria) ([]filter.Group, int, error)
	Tags(ctx context.Context, q catalog.TagQuery) (pagination.Window[domain.TagUsage], error)
	Invalidate(ctx context.Context)
	Ready() bool
	Stats() catalog.Stats
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Build        version.Info
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedHosts []string         // Host headers allowed on /api
	AllowedCIDRS []string         // IPs allowed to access ops endpoints
	CORSOrigins  []string         // browser origins allowed on /api
	TrustProxy   bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RateBurst    int              // per-IP bucket size on /api, 0 disables limiting
	RatePerMin   int              // per-IP refill rate

	Catalog        Catalog
	RedisClient    *redis.Client // nil when the shared store is disabled
	RefreshTrigger func() bool   // queues a background refresh, false if one is already pending

	PageSize    int           // default limit for /api/bookmarks
	MaxPageSize int           // upper bound for limit
	CacheTTL    time.Duration // drives Cache-Control on listings
}

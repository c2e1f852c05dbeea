package mw

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/linkdeck/internal/utils"
)

// RateLimitConfig configures per-client-IP throttling.
type RateLimitConfig struct {
	Burst             int // requests allowed back to back; 0 disables limiting
	RefillPerIPPerMin int
	MaxEntries        int           // sweep early once this many clients are tracked
	SweepInterval     time.Duration // default 1m
	TrustProxy        bool          // resolve IP from proxy headers when true
	Now               func() time.Time
}

// verdict is the outcome of one admission check.
type verdict struct {
	allowed    bool
	remaining  int
	retryAfter time.Duration
}

// gcraStore implements the generic cell rate algorithm: for each client it
// keeps the theoretical arrival time (tat) of the next request. A request
// is admitted when it does not arrive earlier than tat minus the burst
// window. A tat in the past is the same as a full bucket, so such entries
// can be dropped at any time.
type gcraStore struct {
	interval time.Duration // time to earn one request
	window   time.Duration // interval * burst

	maxEntries    int
	sweepInterval time.Duration

	mu        sync.Mutex
	tat       map[string]time.Time
	lastSweep time.Time
}

func newGCRAStore(cfg RateLimitConfig, now time.Time) *gcraStore {
	perMin := max(cfg.RefillPerIPPerMin, 1)
	interval := time.Minute / time.Duration(perMin)
	sweep := cfg.SweepInterval
	if sweep <= 0 {
		sweep = time.Minute
	}
	return &gcraStore{
		interval:      interval,
		window:        interval * time.Duration(cfg.Burst),
		maxEntries:    cfg.MaxEntries,
		sweepInterval: sweep,
		tat:           make(map[string]time.Time, 256),
		lastSweep:     now,
	}
}

func (s *gcraStore) take(key string, now time.Time) verdict {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= s.sweepInterval ||
		(s.maxEntries > 0 && len(s.tat) >= s.maxEntries) {
		s.sweepLocked(now)
	}

	tat := s.tat[key]
	if tat.Before(now) {
		tat = now
	}
	next := tat.Add(s.interval)
	earliest := next.Add(-s.window)

	if now.Before(earliest) {
		return verdict{retryAfter: earliest.Sub(now)}
	}

	s.tat[key] = next
	return verdict{
		allowed:   true,
		remaining: int(now.Sub(earliest) / s.interval),
	}
}

func (s *gcraStore) sweepLocked(now time.Time) {
	for key, tat := range s.tat {
		if !tat.After(now) {
			delete(s.tat, key)
		}
	}
	s.lastSweep = now
}

// retrySeconds rounds up, with a floor of one second.
func retrySeconds(d time.Duration) int {
	sec := int((d + time.Second - 1) / time.Second)
	return max(sec, 1)
}

// RateLimit throttles requests per client IP. All routes wrapped by the
// returned middleware share the same store.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Burst <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	store := newGCRAStore(cfg, now())
	limit := strconv.Itoa(cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v := store.take(utils.ClientIP(r, cfg.TrustProxy), now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(v.remaining))
			if !v.allowed {
				h.Set("Retry-After", strconv.Itoa(retrySeconds(v.retryAfter)))
				reject(w, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Package cache provides the process-wide retrieval cache: TTL entries,
// one shared fetch ("flight") per key, and generation tracking so that an
// overtaken fetch can never overwrite a newer result.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrSnakeDoc/linkdeck/internal/logger"
)

var (
	// ErrSuperseded is returned to waiters of a flight that was overtaken by a
	// newer fetch or an invalidation. It is a cancellation signal, not a failure.
	ErrSuperseded = errors.New("cache: fetch superseded")

	// ErrClosed is returned once the cache has been closed.
	ErrClosed = errors.New("cache: closed")
)

// Fetcher produces a fresh value. ctx is cancelled when the flight is superseded
// or the cache is closed.
type Fetcher[V any] func(ctx context.Context) (V, error)

// Entry is a cached value with the instant it was captured.
type Entry[V any] struct {
	Value      V         `json:"value"`
	CapturedAt time.Time `json:"captured_at"`
}

// Backing is an optional second tier shared between processes.
// Errors from a backing store are logged and otherwise ignored.
type Backing[V any] interface {
	Load(ctx context.Context, key string) (Entry[V], bool, error)
	Save(ctx context.Context, key string, e Entry[V], ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Options[V any] struct {
	TTL     time.Duration
	Backing Backing[V]
	Logger  logger.Logger
	Now     func() time.Time
}

type flight[V any] struct {
	gen    uint64
	done   chan struct{}
	cancel context.CancelFunc
	value  V
	err    error
}

// Cache is safe for concurrent use. The zero value is not usable; call New.
type Cache[V any] struct {
	ttl     time.Duration
	backing Backing[V]
	log     logger.Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// backingMu orders saves against loads of the backing store, so a
	// flight never reads a value that an invalidation is about to retract.
	backingMu sync.Mutex

	mu       sync.Mutex
	closed   bool
	entries  map[string]Entry[V]
	inflight map[string]*flight[V]
	gens     map[string]uint64
}

func New[V any](opts Options[V]) *Cache[V] {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Cache[V]{
		ttl:      opts.TTL,
		backing:  opts.Backing,
		log:      opts.Logger,
		now:      opts.Now,
		ctx:      ctx,
		cancel:   cancel,
		entries:  make(map[string]Entry[V]),
		inflight: make(map[string]*flight[V]),
		gens:     make(map[string]uint64),
	}
}

// TTL returns the configured time-to-live.
func (c *Cache[V]) TTL() time.Duration { return c.ttl }

// GetOrFetch returns the live entry for key, or joins (or starts) the flight
// fetching it. A caller whose ctx ends stops waiting; the flight keeps going
// for the other waiters.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, fetch Fetcher[V]) (V, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			var zero V
			return zero, ErrClosed
		}
		if e, ok := c.entries[key]; ok && c.live(e) {
			c.mu.Unlock()
			return e.Value, nil
		}
		f, ok := c.inflight[key]
		if !ok {
			f = c.startLocked(key, fetch, true)
		}
		c.mu.Unlock()

		v, err := c.wait(ctx, f)
		if errors.Is(err, ErrSuperseded) {
			continue
		}
		return v, err
	}
}

// Fetch bypasses any live entry, supersedes a running flight for key and waits
// for the fresh value.
func (c *Cache[V]) Fetch(ctx context.Context, key string, fetch Fetcher[V]) (V, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		var zero V
		return zero, ErrClosed
	}
	c.supersedeLocked(key)
	f := c.startLocked(key, fetch, false)
	c.mu.Unlock()

	v, err := c.wait(ctx, f)
	if errors.Is(err, ErrSuperseded) {
		// overtaken by an even newer request
		return c.GetOrFetch(ctx, key, fetch)
	}
	return v, err
}

// Invalidate drops the entry for key and abandons any flight for it.
func (c *Cache[V]) Invalidate(ctx context.Context, key string) {
	c.mu.Lock()
	c.supersedeLocked(key)
	delete(c.entries, key)
	c.mu.Unlock()

	c.deleteBacking(ctx, key)
}

// InvalidateAll drops every entry and abandons every flight.
func (c *Cache[V]) InvalidateAll(ctx context.Context) {
	c.mu.Lock()
	keys := make(map[string]struct{}, len(c.entries)+len(c.inflight))
	for k := range c.entries {
		keys[k] = struct{}{}
	}
	for k := range c.inflight {
		keys[k] = struct{}{}
	}
	for k := range keys {
		c.supersedeLocked(k)
	}
	clear(c.entries)
	c.mu.Unlock()

	for k := range keys {
		c.deleteBacking(ctx, k)
	}
}

// Peek returns the live entry for key without fetching.
func (c *Cache[V]) Peek(key string) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !c.live(e) {
		return Entry[V]{}, false
	}
	return e, true
}

// Sweep removes entries that are no longer live at now and returns how many
// were removed. Running flights are left alone.
func (c *Cache[V]) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if now.Sub(e.CapturedAt) >= c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, live or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Inflight returns the number of running flights.
func (c *Cache[V]) Inflight() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.inflight)
}

// Close cancels every flight, releases their waiters and waits for the
// flight goroutines to return.
func (c *Cache[V]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for k, f := range c.inflight {
		f.cancel()
		f.err = ErrClosed
		close(f.done)
		delete(c.inflight, k)
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Cache[V]) live(e Entry[V]) bool {
	return c.now().Sub(e.CapturedAt) < c.ttl
}

// supersedeLocked bumps the generation of key and releases the waiters of
// its current flight with ErrSuperseded.
func (c *Cache[V]) supersedeLocked(key string) {
	c.gens[key]++
	f, ok := c.inflight[key]
	if !ok {
		return
	}
	f.cancel()
	f.err = ErrSuperseded
	close(f.done)
	delete(c.inflight, key)
}

func (c *Cache[V]) startLocked(key string, fetch Fetcher[V], useBacking bool) *flight[V] {
	c.gens[key]++
	fctx, cancel := context.WithCancel(c.ctx)
	f := &flight[V]{
		gen:    c.gens[key],
		done:   make(chan struct{}),
		cancel: cancel,
	}
	c.inflight[key] = f

	c.wg.Add(1)
	go c.run(fctx, key, f, fetch, useBacking)
	return f
}

func (c *Cache[V]) run(ctx context.Context, key string, f *flight[V], fetch Fetcher[V], useBacking bool) {
	defer c.wg.Done()
	defer f.cancel()

	var (
		e      Entry[V]
		err    error
		loaded bool
	)
	if useBacking {
		e, loaded = c.loadBacking(ctx, key)
	}
	if !loaded {
		e.Value, err = fetch(ctx)
		e.CapturedAt = c.now()
	}

	c.mu.Lock()
	if cur, ok := c.inflight[key]; !ok || cur != f || c.gens[key] != f.gen {
		c.mu.Unlock()
		c.log.Debug("discarding superseded fetch result",
			logger.String("key", key),
			logger.Uint64("generation", f.gen))
		return
	}
	delete(c.inflight, key)
	if err == nil {
		c.entries[key] = e
	}
	f.value, f.err = e.Value, err
	close(f.done)
	c.mu.Unlock()

	if err == nil && !loaded {
		c.saveBacking(context.WithoutCancel(ctx), key, f.gen, e)
	}
}

// current reports whether gen is still the newest generation of key.
func (c *Cache[V]) current(key string, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key] == gen
}

func (c *Cache[V]) wait(ctx context.Context, f *flight[V]) (V, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

func (c *Cache[V]) loadBacking(ctx context.Context, key string) (Entry[V], bool) {
	if c.backing == nil {
		return Entry[V]{}, false
	}
	c.backingMu.Lock()
	e, ok, err := c.backing.Load(ctx, key)
	c.backingMu.Unlock()
	if err != nil {
		c.log.Warn("backing store load failed",
			logger.String("key", key),
			logger.Error(err))
		return Entry[V]{}, false
	}
	if !ok || !c.live(e) {
		return Entry[V]{}, false
	}
	c.log.Debug("cache entry loaded from backing store",
		logger.String("key", key),
		logger.Time("captured_at", e.CapturedAt))
	return e, true
}

// saveBacking writes the result of generation gen. An invalidation that
// lands while the write is in flight bumps the generation, and the write is
// then retracted so the store never outlives the invalidation.
func (c *Cache[V]) saveBacking(ctx context.Context, key string, gen uint64, e Entry[V]) {
	if c.backing == nil {
		return
	}
	c.backingMu.Lock()
	defer c.backingMu.Unlock()

	if !c.current(key, gen) {
		return
	}
	if err := c.backing.Save(ctx, key, e, c.ttl); err != nil {
		c.log.Warn("backing store save failed",
			logger.String("key", key),
			logger.Error(err))
		return
	}
	if !c.current(key, gen) {
		c.log.Debug("retracting backing entry invalidated during save",
			logger.String("key", key),
			logger.Uint64("generation", gen))
		c.deleteBacking(ctx, key)
	}
}

func (c *Cache[V]) deleteBacking(ctx context.Context, key string) {
	if c.backing == nil {
		return
	}
	if err := c.backing.Delete(ctx, key); err != nil {
		c.log.Warn("backing store delete failed",
			logger.String("key", key),
			logger.Error(err))
	}
}

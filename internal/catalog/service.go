// Package catalog runs the retrieval pipeline: cached upstream snapshot,
// filtering and sorting, tag usage ranking and pagination.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/MrSnakeDoc/linkdeck/internal/cache"
	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/filter"
	"github.com/MrSnakeDoc/linkdeck/internal/index"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/pagination"
	"github.com/MrSnakeDoc/linkdeck/internal/sources/linkding"
)

// Cache keys. The complete set is cached once and filtered per request.
const (
	BookmarksKey = "bookmarks"
	TagsKey      = "tags"
)

// Upstream is the part of the linkding client the catalog needs.
type Upstream interface {
	FetchAll(ctx context.Context, opts linkding.ListOptions) (linkding.CompleteResult, error)
	FetchAllTags(ctx context.Context) ([]domain.Tag, error)
}

type Options struct {
	Upstream Upstream
	TTL      time.Duration
	Locale   language.Tag

	// Optional shared second tier for both caches.
	SnapshotBacking cache.Backing[*domain.Snapshot]
	TagBacking      cache.Backing[[]domain.Tag]

	Logger logger.Logger
	Now    func() time.Time
}

// Service is safe for concurrent use.
type Service struct {
	upstream  Upstream
	snapshots *cache.Cache[*domain.Snapshot]
	tags      *cache.Cache[[]domain.Tag]
	engine    *filter.Engine
	usage     *index.UsageIndex
	locale    language.Tag
	log       logger.Logger
	now       func() time.Time

	mu       sync.RWMutex
	last     *domain.Snapshot
	lastTags int
	lastErr  error
}

func New(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Locale == language.Und {
		opts.Locale = language.English
	}

	return &Service{
		upstream: opts.Upstream,
		snapshots: cache.New(cache.Options[*domain.Snapshot]{
			TTL:     opts.TTL,
			Backing: opts.SnapshotBacking,
			Logger:  opts.Logger,
			Now:     opts.Now,
		}),
		tags: cache.New(cache.Options[[]domain.Tag]{
			TTL:     opts.TTL,
			Backing: opts.TagBacking,
			Logger:  opts.Logger,
			Now:     opts.Now,
		}),
		engine: filter.New(opts.Locale),
		usage:  index.NewUsageIndex(),
		locale: opts.Locale,
		log:    opts.Logger,
		now:    opts.Now,
	}
}

// Snapshot returns the cached complete bookmark set, fetching it if needed.
func (s *Service) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	snap, err := s.snapshots.GetOrFetch(ctx, BookmarksKey, s.fetchSnapshot)
	return s.observe(snap, err)
}

// TagList returns the cached complete tag list, fetching it if needed.
func (s *Service) TagList(ctx context.Context) ([]domain.Tag, error) {
	tags, err := s.tags.GetOrFetch(ctx, TagsKey, s.upstream.FetchAllTags)
	if err == nil {
		s.mu.Lock()
		s.lastTags = len(tags)
		s.mu.Unlock()
	}
	return tags, err
}

// Filter returns every record matching c, in c's sort order.
func (s *Service) Filter(ctx context.Context, c domain.Criteria) ([]domain.Bookmark, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.Apply(snap.Bookmarks, c), nil
}

// List filters and sorts the snapshot, then returns page c.Page of the given size.
func (s *Service) List(ctx context.Context, c domain.Criteria, size int) (pagination.Page[domain.Bookmark], error) {
	records, err := s.Filter(ctx, c)
	if err != nil {
		return pagination.Page[domain.Bookmark]{}, err
	}
	return pagination.Paginate(records, c.Normalize().Page, size), nil
}

// Groups filters and sorts the snapshot and fans the result out per tag.
// It also returns the number of matching records before fan-out.
func (s *Service) Groups(ctx context.Context, c domain.Criteria) ([]filter.Group, int, error) {
	records, err := s.Filter(ctx, c)
	if err != nil {
		return nil, 0, err
	}
	return filter.GroupByTag(records), len(records), nil
}

// TagQuery selects a window of the ranked tag list.
type TagQuery struct {
	Search string
	Limit  int
	Offset int
}

// Tags ranks upstream tags by how many loaded bookmarks use them. Unused tags are dropped.
func (s *Service) Tags(ctx context.Context, q TagQuery) (pagination.Window[domain.TagUsage], error) {
	var (
		snap *domain.Snapshot
		tags []domain.Tag
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap, err = s.Snapshot(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		tags, err = s.TagList(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return pagination.Window[domain.TagUsage]{}, err
	}

	ranked := index.RankTags(tags, s.usage.Counts(snap), s.locale)
	ranked = index.SearchTags(ranked, q.Search)
	return pagination.Slice(ranked, q.Offset, q.Limit), nil
}

// Refresh re-fetches both listings, superseding any running fetch.
func (s *Service) Refresh(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap, err := s.snapshots.Fetch(gctx, BookmarksKey, s.fetchSnapshot)
		_, err = s.observe(snap, err)
		return err
	})
	g.Go(func() error {
		tags, err := s.tags.Fetch(gctx, TagsKey, s.upstream.FetchAllTags)
		if err == nil {
			s.mu.Lock()
			s.lastTags = len(tags)
			s.mu.Unlock()
		}
		return err
	})
	return g.Wait()
}

// Invalidate drops both cached listings and cancels their running fetches.
func (s *Service) Invalidate(ctx context.Context) {
	s.snapshots.InvalidateAll(ctx)
	s.tags.InvalidateAll(ctx)
}

// Sweep evicts expired cache entries and returns how many were removed.
func (s *Service) Sweep(now time.Time) int {
	return s.snapshots.Sweep(now) + s.tags.Sweep(now)
}

// Ready reports whether a bookmark snapshot has been loaded at least once.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last != nil
}

// Stats is a point-in-time view of the pipeline for the ops endpoints.
type Stats struct {
	LastFetch     time.Time `json:"last_fetch"`
	Bookmarks     int       `json:"bookmarks"`
	Tags          int       `json:"tags"`
	IndexedTags   int       `json:"indexed_tags"`
	Partial       bool      `json:"partial"`
	Missing       int       `json:"missing"`
	CachedEntries int       `json:"cached_entries"`
	Inflight      int       `json:"inflight"`
	LastError     string    `json:"last_error,omitempty"`
}

func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Tags:          s.lastTags,
		IndexedTags:   s.usage.Count(),
		CachedEntries: s.snapshots.Len() + s.tags.Len(),
		Inflight:      s.snapshots.Inflight() + s.tags.Inflight(),
	}
	if s.last != nil {
		st.LastFetch = s.last.FetchedAt
		st.Bookmarks = s.last.Len()
		st.Partial = s.last.Incomplete != nil
		st.Missing = s.last.Incomplete.Missing()
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Close cancels running fetches. The service must not be used afterwards.
func (s *Service) Close() {
	s.snapshots.Close()
	s.tags.Close()
}

func (s *Service) observe(snap *domain.Snapshot, err error) (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.lastErr = err
		return nil, err
	}
	s.lastErr = nil
	if s.last == nil || !snap.FetchedAt.Before(s.last.FetchedAt) {
		s.last = snap
	}
	return snap, nil
}

// fetchSnapshot loads active and archived bookmarks concurrently and merges
// them newest first. Batch failures in either listing degrade the snapshot
// instead of failing it.
func (s *Service) fetchSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	start := s.now()

	var active, archived linkding.CompleteResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		active, err = s.upstream.FetchAll(gctx, linkding.ListOptions{})
		if err != nil {
			return fmt.Errorf("fetch bookmarks: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		archived, err = s.upstream.FetchAll(gctx, linkding.ListOptions{ArchivedOnly: true})
		if err != nil {
			return fmt.Errorf("fetch archived bookmarks: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]domain.Bookmark, 0, len(active.Bookmarks)+len(archived.Bookmarks))
	records = append(records, active.Bookmarks...)
	records = append(records, archived.Bookmarks...)
	s.engine.Sort(records, domain.SortNewest)

	snap := &domain.Snapshot{
		Bookmarks:  records,
		FetchedAt:  s.now(),
		Incomplete: mergePartial(active, archived),
	}

	s.log.Info("bookmark snapshot fetched",
		logger.Int("bookmarks", len(records)),
		logger.Int("archived", len(archived.Bookmarks)),
		logger.Bool("partial", snap.Incomplete != nil),
		logger.Duration("elapsed", s.now().Sub(start)))
	return snap, nil
}

func mergePartial(results ...linkding.CompleteResult) *domain.PartialFetchError {
	var (
		partial bool
		merged  domain.PartialFetchError
	)
	for _, r := range results {
		merged.Expected += max(r.Count, len(r.Bookmarks))
		merged.Fetched += len(r.Bookmarks)
		if r.Partial != nil {
			partial = true
			merged.Err = multierr.Append(merged.Err, r.Partial.Err)
		}
	}
	if !partial {
		return nil
	}
	return &merged
}

package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/filter"
	"github.com/MrSnakeDoc/linkdeck/internal/sources/linkding"
)

var base = time.Date(2025, 8, 17, 12, 0, 0, 0, time.UTC)

type fakeUpstream struct {
	mu       sync.Mutex
	active   []domain.Bookmark
	archived []domain.Bookmark
	partial  *domain.PartialFetchError
	tags     []domain.Tag
	err      error

	fetches    atomic.Int32
	tagFetches atomic.Int32
}

func (f *fakeUpstream) FetchAll(_ context.Context, opts linkding.ListOptions) (linkding.CompleteResult, error) {
	f.fetches.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return linkding.CompleteResult{}, f.err
	}
	if opts.ArchivedOnly {
		return linkding.CompleteResult{Bookmarks: f.archived, Count: len(f.archived)}, nil
	}
	res := linkding.CompleteResult{Bookmarks: f.active, Count: len(f.active), Partial: f.partial}
	if f.partial != nil {
		res.Count = f.partial.Expected
	}
	return res, nil
}

func (f *fakeUpstream) FetchAllTags(context.Context) ([]domain.Tag, error) {
	f.tagFetches.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.tags, nil
}

func bookmark(id int64, age time.Duration, tags ...string) domain.Bookmark {
	return domain.Bookmark{ID: id, Title: "b", TagNames: tags, DateAdded: base.Add(-age)}
}

func newService(t *testing.T, up *fakeUpstream) *Service {
	t.Helper()
	s := New(Options{Upstream: up, TTL: time.Minute, Locale: language.English, Now: func() time.Time { return base }})
	t.Cleanup(s.Close)
	return s
}

func ids(records []domain.Bookmark) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestSnapshotMergesActiveAndArchivedNewestFirst(t *testing.T) {
	archived := bookmark(3, 0)
	archived.IsArchived = true
	up := &fakeUpstream{
		active:   []domain.Bookmark{bookmark(1, 2*time.Hour), bookmark(2, time.Hour)},
		archived: []domain.Bookmark{archived},
	}
	s := newService(t, up)

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1}, ids(snap.Bookmarks))
	assert.Nil(t, snap.Incomplete)
	assert.True(t, s.Ready())

	_, err = s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), up.fetches.Load(), "second call should hit the cache")
}

func TestListAppliesCriteriaAndPaginates(t *testing.T) {
	var active []domain.Bookmark
	for i := range 45 {
		active = append(active, bookmark(int64(i+1), time.Duration(i)*time.Minute, "go"))
	}
	active = append(active, bookmark(100, 0, "rust"))
	s := newService(t, &fakeUpstream{active: active})

	page, err := s.List(context.Background(), domain.Criteria{Tags: []string{"go"}, Page: 3}, 20)
	require.NoError(t, err)
	assert.Equal(t, 45, page.Total)
	assert.Equal(t, []int64{41, 42, 43, 44, 45}, ids(page.Items))
	assert.False(t, page.HasNext)
	assert.True(t, page.HasPrevious)
}

func TestArchivedFilterUsesBothListings(t *testing.T) {
	archived := bookmark(2, time.Hour)
	archived.IsArchived = true
	s := newService(t, &fakeUpstream{
		active:   []domain.Bookmark{bookmark(1, 0)},
		archived: []domain.Bookmark{archived},
	})

	only, err := s.Filter(context.Background(), domain.Criteria{Archived: domain.Bool(true)})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(only))

	none, err := s.Filter(context.Background(), domain.Criteria{Archived: domain.Bool(false)})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(none))
}

func TestGroups(t *testing.T) {
	s := newService(t, &fakeUpstream{active: []domain.Bookmark{
		bookmark(1, 0, "a", "b"),
		bookmark(2, time.Hour),
	}})

	groups, count, err := s.Groups(context.Background(), domain.Criteria{})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, groups, 3)
	assert.Equal(t, filter.UntaggedGroup, groups[2].Name)
}

func TestTagsRankedByUsage(t *testing.T) {
	s := newService(t, &fakeUpstream{
		active: []domain.Bookmark{
			bookmark(1, 0, "a", "b"),
			bookmark(2, time.Minute, "a"),
			bookmark(3, 2*time.Minute),
		},
		tags: []domain.Tag{{ID: 1, Name: "b"}, {ID: 2, Name: "a"}, {ID: 3, Name: "unused"}},
	})

	w, err := s.Tags(context.Background(), TagQuery{Limit: 100})
	require.NoError(t, err)
	require.Len(t, w.Items, 2)
	assert.Equal(t, "a", w.Items[0].Name)
	assert.Equal(t, 2, w.Items[0].Count)
	assert.Equal(t, "b", w.Items[1].Name)
	assert.Equal(t, 1, w.Items[1].Count)

	found, err := s.Tags(context.Background(), TagQuery{Search: "B", Limit: 100})
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "b", found.Items[0].Name)
}

func TestPartialFetchIsNotAnError(t *testing.T) {
	s := newService(t, &fakeUpstream{
		active:  []domain.Bookmark{bookmark(1, 0), bookmark(2, 0)},
		partial: &domain.PartialFetchError{Expected: 4, Fetched: 2, Err: errors.New("batch failed")},
	})

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Bookmarks, 2)
	require.NotNil(t, snap.Incomplete)
	assert.Equal(t, 2, snap.Incomplete.Missing())

	st := s.Stats()
	assert.True(t, st.Partial)
	assert.Equal(t, 2, st.Missing)
}

func TestUpstreamFailurePropagates(t *testing.T) {
	up := &fakeUpstream{err: &domain.UpstreamError{Method: "GET", Endpoint: "/bookmarks/", StatusCode: 502, Status: "502 Bad Gateway"}}
	s := newService(t, up)

	_, err := s.List(context.Background(), domain.Criteria{}, 20)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.False(t, s.Ready())
	assert.NotEmpty(t, s.Stats().LastError)
}

func TestRefreshBypassesCache(t *testing.T) {
	up := &fakeUpstream{active: []domain.Bookmark{bookmark(1, 0)}}
	s := newService(t, up)

	_, err := s.Snapshot(context.Background())
	require.NoError(t, err)

	up.mu.Lock()
	up.active = []domain.Bookmark{bookmark(1, 0), bookmark(2, time.Hour)}
	up.mu.Unlock()

	require.NoError(t, s.Refresh(context.Background()))
	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Bookmarks, 2)
	assert.Equal(t, int32(1), up.tagFetches.Load())
}

func TestInvalidateForcesRefetch(t *testing.T) {
	up := &fakeUpstream{active: []domain.Bookmark{bookmark(1, 0)}}
	s := newService(t, up)

	_, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	s.Invalidate(context.Background())
	_, err = s.Snapshot(context.Background())
	require.NoError(t, err)

	// two listings per snapshot fetch
	assert.Equal(t, int32(4), up.fetches.Load())
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/linkdeck/internal/catalog"
	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/filter"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/pagination"
	"github.com/MrSnakeDoc/linkdeck/internal/version"
)

type fakeCatalog struct {
	records []domain.Bookmark
	tags    []domain.TagUsage
	err     error
	ready   bool
	stats   catalog.Stats

	lastCriteria domain.Criteria
	lastSize     int
	lastTagQuery catalog.TagQuery
	invalidated  int
}

func (f *fakeCatalog) List(_ context.Context, c domain.Criteria, size int) (pagination.Page[domain.Bookmark], error) {
	f.lastCriteria, f.lastSize = c, size
	if f.err != nil {
		return pagination.Page[domain.Bookmark]{}, f.err
	}
	return pagination.Paginate(f.records, c.Normalize().Page, size), nil
}

func (f *fakeCatalog) Groups(_ context.Context, c domain.Criteria) ([]filter.Group, int, error) {
	f.lastCriteria = c
	if f.err != nil {
		return nil, 0, f.err
	}
	return filter.GroupByTag(f.records), len(f.records), nil
}

func (f *fakeCatalog) Tags(_ context.Context, q catalog.TagQuery) (pagination.Window[domain.TagUsage], error) {
	f.lastTagQuery = q
	if f.err != nil {
		return pagination.Window[domain.TagUsage]{}, f.err
	}
	return pagination.Slice(f.tags, q.Offset, q.Limit), nil
}

func (f *fakeCatalog) Invalidate(context.Context) { f.invalidated++ }
func (f *fakeCatalog) Ready() bool                { return f.ready }
func (f *fakeCatalog) Stats() catalog.Stats       { return f.stats }

func newDeps(c *fakeCatalog) deps.Deps {
	return deps.Deps{
		Logger:      logger.NewNop(),
		StartTime:   time.Date(2025, 8, 17, 12, 0, 0, 0, time.UTC),
		TimeNow:     func() time.Time { return time.Date(2025, 8, 17, 12, 1, 0, 0, time.UTC) },
		Build:       version.Info{Version: "v1.2.3", GoVersion: "go1.25.5"},
		Catalog:     c,
		PageSize:    20,
		MaxPageSize: 500,
		CacheTTL:    2 * time.Minute,
	}
}

func records(n int) []domain.Bookmark {
	out := make([]domain.Bookmark, n)
	for i := range out {
		out[i] = domain.Bookmark{ID: int64(i + 1), TagNames: []string{}}
	}
	return out
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestBookmarksPaginates(t *testing.T) {
	fc := &fakeCatalog{records: records(45)}
	h := Bookmarks(newDeps(fc))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "http://deck.test/api/bookmarks?tags=go&page=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, s-maxage=120, stale-while-revalidate=300", rec.Header().Get("Cache-Control"))
	assert.Equal(t, []string{"go"}, fc.lastCriteria.Tags)
	assert.Equal(t, 20, fc.lastSize)

	body := decode[bookmarksResponse](t, rec)
	assert.Equal(t, 45, body.Count)
	require.Len(t, body.Results, 20)
	assert.Equal(t, int64(21), body.Results[0].ID)
	require.NotNil(t, body.Next)
	assert.Equal(t, "http://deck.test/api/bookmarks?page=3&tags=go", *body.Next)
	require.NotNil(t, body.Previous)
	assert.Equal(t, "http://deck.test/api/bookmarks?tags=go", *body.Previous)
}

func TestBookmarksLimit(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{name: "default", query: "", want: 20},
		{name: "explicit", query: "?limit=50", want: 50},
		{name: "capped", query: "?limit=9000", want: 500},
		{name: "garbage", query: "?limit=abc", want: 20},
		{name: "negative", query: "?limit=-4", want: 20},
		{name: "zero", query: "?limit=0", want: 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeCatalog{}
			rec := httptest.NewRecorder()
			Bookmarks(newDeps(fc))(rec, httptest.NewRequest(http.MethodGet, "/api/bookmarks"+tt.query, nil))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, fc.lastSize)
		})
	}
}

func TestBookmarksUpstreamFailure(t *testing.T) {
	fc := &fakeCatalog{err: &domain.UpstreamError{Method: "GET", Endpoint: "/bookmarks/", StatusCode: 502, Status: "502 Bad Gateway"}}
	rec := httptest.NewRecorder()
	Bookmarks(newDeps(fc))(rec, httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"failed to fetch bookmarks"}`, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestGroups(t *testing.T) {
	fc := &fakeCatalog{records: []domain.Bookmark{
		{ID: 1, TagNames: []string{"a"}},
		{ID: 2, TagNames: []string{}},
	}}
	rec := httptest.NewRecorder()
	Groups(newDeps(fc))(rec, httptest.NewRequest(http.MethodGet, "/api/bookmarks/groups?unread=1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, fc.lastCriteria.Unread)

	body := decode[groupsResponse](t, rec)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Groups, 2)
	assert.Equal(t, "a", body.Groups[0].Name)
	assert.Equal(t, filter.UntaggedGroup, body.Groups[1].Name)
}

func TestTags(t *testing.T) {
	var tags []domain.TagUsage
	for i := range 150 {
		tags = append(tags, domain.TagUsage{Tag: domain.Tag{ID: int64(i), Name: "t"}, Count: 1})
	}
	fc := &fakeCatalog{tags: tags}

	rec := httptest.NewRecorder()
	Tags(newDeps(fc))(rec, httptest.NewRequest(http.MethodGet, "http://deck.test/api/tags?q=+go+", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, catalog.TagQuery{Search: "go", Limit: 100, Offset: 0}, fc.lastTagQuery)

	body := decode[tagsResponse](t, rec)
	assert.Equal(t, 150, body.Count)
	assert.Len(t, body.Results, 100)
	require.NotNil(t, body.Next)
	assert.Equal(t, "http://deck.test/api/tags?offset=100&q=+go+", *body.Next)
	assert.Nil(t, body.Previous)
}

func TestTagsFailure(t *testing.T) {
	fc := &fakeCatalog{err: errors.New("boom")}
	rec := httptest.NewRecorder()
	Tags(newDeps(fc))(rec, httptest.NewRequest(http.MethodGet, "/api/tags", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"failed to fetch tags"}`, rec.Body.String())
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name    string
		trigger func() bool
		want    string
	}{
		{name: "queued", trigger: func() bool { return true }, want: "refresh scheduled"},
		{name: "pending", trigger: func() bool { return false }, want: "refresh already pending"},
		{name: "no warmer", trigger: nil, want: "refresh scheduled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeCatalog{}
			d := newDeps(fc)
			d.RefreshTrigger = tt.trigger

			rec := httptest.NewRecorder()
			Refresh(d)(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))

			assert.Equal(t, http.StatusAccepted, rec.Code)
			assert.Equal(t, 1, fc.invalidated)
			assert.Equal(t, tt.want, decode[refreshResponse](t, rec).Status)
		})
	}
}

func TestReadyz(t *testing.T) {
	fc := &fakeCatalog{}
	h := Readyz(newDeps(fc))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"ready":false}`, rec.Body.String())

	fc.ready = true
	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ready":true}`, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	Healthz(newDeps(&fakeCatalog{}))(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[healthzResponse](t, rec)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "v1.2.3", body.Version)
	assert.Equal(t, "go1.25.5", body.GoVersion)
	assert.InDelta(t, 60, body.UptimeSeconds, 0.001)
}

func TestInfra(t *testing.T) {
	tests := []struct {
		name  string
		stats catalog.Stats
		want  string
	}{
		{name: "never fetched", stats: catalog.Stats{}, want: "critical"},
		{name: "last fetch failed", stats: catalog.Stats{LastFetch: time.Now(), LastError: "upstream down"}, want: "critical"},
		{name: "partial", stats: catalog.Stats{LastFetch: time.Now(), Partial: true, Missing: 3}, want: "degraded"},
		{name: "healthy", stats: catalog.Stats{LastFetch: time.Now(), Bookmarks: 10}, want: "operational"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Infra(newDeps(&fakeCatalog{stats: tt.stats}))(rec, httptest.NewRequest(http.MethodGet, "/infra", nil))

			require.Equal(t, http.StatusOK, rec.Code)
			body := decode[infraResponse](t, rec)
			assert.Equal(t, tt.want, body.Status)
			assert.Equal(t, "disabled", body.Components["redis"].Mode)
		})
	}
}

package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/linkdeck/internal/app"
	"github.com/MrSnakeDoc/linkdeck/internal/config"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/sources/linkding"
	"github.com/MrSnakeDoc/linkdeck/internal/sources/linkding/linkdingtest"
)

var base = time.Date(2025, 8, 17, 12, 0, 0, 0, time.UTC)

type listBody struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []struct {
		ID         int64    `json:"id"`
		Title      string   `json:"title"`
		TagNames   []string `json:"tag_names"`
		IsArchived bool     `json:"is_archived"`
	} `json:"results"`
}

type tagsBody struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	} `json:"results"`
}

type env struct {
	upstream  *linkdingtest.Server
	api       *httptest.Server
	refreshes atomic.Int32
}

// records builds n active bookmarks, newest first by id. Even ids are tagged "go".
func records(n int) []linkding.BookmarkRecord {
	out := make([]linkding.BookmarkRecord, 0, n)
	for i := 1; i <= n; i++ {
		tags := []string{"misc"}
		if i%2 == 0 {
			tags = []string{"go", "misc"}
		}
		out = append(out, linkding.BookmarkRecord{
			ID:        int64(i),
			URL:       fmt.Sprintf("https://example.com/%d", i),
			Title:     fmt.Sprintf("Bookmark %02d", i),
			TagNames:  tags,
			DateAdded: base.Add(-time.Duration(i) * time.Minute),
		})
	}
	return out
}

func setup(t *testing.T, mutate func(*config.Config)) *env {
	t.Helper()

	archived := linkding.BookmarkRecord{
		ID: 100, URL: "https://example.com/old", Title: "Archived Go",
		TagNames: []string{"go"}, IsArchived: true, DateAdded: base.Add(-48 * time.Hour),
	}
	e := &env{
		upstream: linkdingtest.NewServer(records(45), []linkding.BookmarkRecord{archived},
			[]linkding.TagRecord{{ID: 1, Name: "misc"}, {ID: 2, Name: "go"}, {ID: 3, Name: "unused"}}),
	}
	t.Cleanup(e.upstream.Close)

	cfg := config.Default()
	cfg.APIURL = e.upstream.APIURL()
	cfg.APIToken = linkdingtest.Token
	cfg.InitialPageSize = 10
	cfg.BatchSize = 10
	cfg.RateBurst = 0
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	log := logger.NewNop()
	cat, err := app.NewCatalog(cfg, log, nil)
	require.NoError(t, err)
	t.Cleanup(cat.Close)

	d := app.BuildDeps(cfg, log, cat, nil, func() bool {
		e.refreshes.Add(1)
		return true
	})
	e.api = httptest.NewServer(httpserver.NewRouter(log, d, cfg.RequestTimeout))
	t.Cleanup(e.api.Close)
	return e
}

func get[T any](t *testing.T, url string) (int, T) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body T
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &body), "body: %s", raw)
	return resp.StatusCode, body
}

func TestReadinessFollowsFirstSnapshot(t *testing.T) {
	e := setup(t, nil)

	status, _ := get[map[string]bool](t, e.api.URL+"/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = get[listBody](t, e.api.URL+"/api/bookmarks")
	require.Equal(t, http.StatusOK, status)

	status, body := get[map[string]bool](t, e.api.URL+"/readyz")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body["ready"])
}

func TestBookmarksPaginationAcrossBatches(t *testing.T) {
	e := setup(t, nil)

	status, page1 := get[listBody](t, e.api.URL+"/api/bookmarks?archived=0")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 45, page1.Count)
	require.Len(t, page1.Results, 20)
	assert.Equal(t, int64(1), page1.Results[0].ID)
	assert.Nil(t, page1.Previous)
	require.NotNil(t, page1.Next)
	assert.Equal(t, e.api.URL+"/api/bookmarks?archived=0&page=2", *page1.Next)

	_, page2 := get[listBody](t, *page1.Next)
	require.NotNil(t, page2.Next)
	_, page3 := get[listBody](t, *page2.Next)

	require.Len(t, page3.Results, 5)
	assert.Equal(t, int64(41), page3.Results[0].ID)
	assert.Equal(t, int64(45), page3.Results[4].ID)
	assert.Nil(t, page3.Next)
	require.NotNil(t, page3.Previous)
	assert.Equal(t, e.api.URL+"/api/bookmarks?archived=0&page=2", *page3.Previous)

	// initial page plus four batches per listing, fetched once
	assert.Equal(t, 6, e.upstream.Hits())
}

func TestBookmarksFilterAndSort(t *testing.T) {
	e := setup(t, nil)

	_, all := get[listBody](t, e.api.URL+"/api/bookmarks?tags=go&limit=100")
	assert.Equal(t, 23, all.Count, "22 active plus the archived one")

	_, archived := get[listBody](t, e.api.URL+"/api/bookmarks?tags=go&archived=1")
	require.Len(t, archived.Results, 1)
	assert.True(t, archived.Results[0].IsArchived)

	_, search := get[listBody](t, e.api.URL+"/api/bookmarks?q=BOOKMARK+0&sort=title-desc")
	require.Equal(t, 9, search.Count)
	assert.Equal(t, "Bookmark 09", search.Results[0].Title)
	assert.Equal(t, "Bookmark 01", search.Results[8].Title)
}

func TestGroups(t *testing.T) {
	e := setup(t, nil)

	status, body := get[struct {
		Count  int `json:"count"`
		Groups []struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"groups"`
	}](t, e.api.URL+"/api/bookmarks/groups?archived=0&sort=old")
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, 45, body.Count)
	require.Len(t, body.Groups, 2)
	// oldest first: id 45 (misc) leads, so misc appears before go
	assert.Equal(t, "misc", body.Groups[0].Name)
	assert.Equal(t, 45, body.Groups[0].Count)
	assert.Equal(t, "go", body.Groups[1].Name)
	assert.Equal(t, 22, body.Groups[1].Count)
}

func TestTagsRankedByUsage(t *testing.T) {
	e := setup(t, nil)

	status, body := get[tagsBody](t, e.api.URL+"/api/tags")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Results, 2)
	assert.Equal(t, "misc", body.Results[0].Name)
	assert.Equal(t, 45, body.Results[0].Count)
	assert.Equal(t, "go", body.Results[1].Name)
	assert.Equal(t, 23, body.Results[1].Count)

	_, limited := get[tagsBody](t, e.api.URL+"/api/tags?limit=1")
	require.Len(t, limited.Results, 1)
	require.NotNil(t, limited.Next)
	assert.Equal(t, e.api.URL+"/api/tags?limit=1&offset=1", *limited.Next)

	_, searched := get[tagsBody](t, e.api.URL+"/api/tags?q=G")
	require.Len(t, searched.Results, 1)
	assert.Equal(t, "go", searched.Results[0].Name)
}

func TestRefreshAndUpstreamFailure(t *testing.T) {
	e := setup(t, nil)

	_, before := get[listBody](t, e.api.URL+"/api/bookmarks?archived=0")
	require.Equal(t, 45, before.Count)

	e.upstream.SetActive(records(3))

	// still cached
	_, cached := get[listBody](t, e.api.URL+"/api/bookmarks?archived=0")
	assert.Equal(t, 45, cached.Count)

	resp, err := http.Post(e.api.URL+"/api/refresh", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, int32(1), e.refreshes.Load())

	_, after := get[listBody](t, e.api.URL+"/api/bookmarks?archived=0")
	assert.Equal(t, 3, after.Count)

	e.upstream.SetStatus(http.StatusBadGateway)
	resp, err = http.Post(e.api.URL+"/api/refresh", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	status, body := get[map[string]string](t, e.api.URL+"/api/bookmarks")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "failed to fetch bookmarks", body["error"])

	status, body = get[map[string]string](t, e.api.URL+"/api/tags")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "failed to fetch tags", body["error"])
}

func TestAPIMiddleware(t *testing.T) {
	e := setup(t, func(c *config.Config) {
		c.CORSOrigins = []string{"https://deck.example.com"}
		c.RateBurst = 2
		c.RatePerMin = 1
	})

	req, err := http.NewRequest(http.MethodOptions, e.api.URL+"/api/bookmarks", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://deck.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://deck.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	// preflights are answered before the limiter; two GETs drain the bucket
	for range 2 {
		resp, err = http.Get(e.api.URL + "/api/tags")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err = http.Get(e.api.URL + "/api/tags")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "Too Many Requests"))

	// ops routes are not rate limited
	resp, err = http.Get(e.api.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

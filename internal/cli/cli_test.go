package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/linkdeck/internal/config"
	"github.com/MrSnakeDoc/linkdeck/internal/sources/linkding"
	"github.com/MrSnakeDoc/linkdeck/internal/sources/linkding/linkdingtest"
)

func record(id int64, title string, age time.Duration, tags ...string) linkding.BookmarkRecord {
	return linkding.BookmarkRecord{
		ID:        id,
		URL:       fmt.Sprintf("https://example.com/%d", id),
		Title:     title,
		TagNames:  tags,
		DateAdded: time.Date(2025, 8, 17, 12, 0, 0, 0, time.UTC).Add(-age),
	}
}

func setup(t *testing.T) *linkdingtest.Server {
	t.Helper()
	archived := record(4, "Old Go Blog", 72*time.Hour, "go")
	archived.IsArchived = true

	srv := linkdingtest.NewServer(
		[]linkding.BookmarkRecord{
			record(1, "Go Docs", time.Hour, "go", "docs"),
			record(2, "Rust Book", 2*time.Hour, "rust"),
			record(3, "Effective Go", 3*time.Hour, "go"),
		},
		[]linkding.BookmarkRecord{archived},
		[]linkding.TagRecord{{ID: 1, Name: "go"}, {ID: 2, Name: "docs"}, {ID: 3, Name: "rust"}, {ID: 4, Name: "unused"}},
	)
	t.Cleanup(srv.Close)

	t.Setenv(config.FileEnv, "")
	t.Setenv("LINKDECK_API_URL", srv.APIURL())
	t.Setenv("LINKDECK_API_TOKEN", linkdingtest.Token)
	t.Setenv("LINKDECK_LOG_LEVEL", "error")
	t.Setenv("LINKDECK_PRETTY_LOG", "false")
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := New()
	a.Writer = &out
	a.ErrWriter = &out
	err := a.RunContext(context.Background(), append([]string{"linkdeck"}, args...))
	return out.String(), err
}

func TestListFiltersByQueryString(t *testing.T) {
	setup(t)

	out, err := run(t, "list", "tags=go&archived=0")
	require.NoError(t, err)

	assert.Contains(t, out, "2 bookmarks")
	assert.Contains(t, out, "Go Docs")
	assert.Contains(t, out, "Effective Go")
	assert.NotContains(t, out, "Rust Book")
	assert.NotContains(t, out, "Old Go Blog")
	assert.Less(t, strings.Index(out, "Go Docs"), strings.Index(out, "Effective Go"), "newest first")
}

func TestListPaging(t *testing.T) {
	setup(t)

	out, err := run(t, "list", "--limit", "2", "--page", "2")
	require.NoError(t, err)

	assert.Contains(t, out, "4 bookmarks  [page 2, 2 per page]")
	assert.Contains(t, out, "Effective Go")
	assert.Contains(t, out, "Old Go Blog [archived]")
	assert.Contains(t, out, "previous: --page 1")
	assert.NotContains(t, out, "next:")
}

func TestListGrouped(t *testing.T) {
	setup(t)

	out, err := run(t, "list", "--grouped", "archived=0")
	require.NoError(t, err)

	assert.Contains(t, out, "3 bookmarks in 3 groups")
	assert.Contains(t, out, "go (2)")
	assert.Contains(t, out, "docs (1)")
	assert.Contains(t, out, "rust (1)")
}

func TestTagsRanked(t *testing.T) {
	setup(t)

	out, err := run(t, "tags")
	require.NoError(t, err)

	assert.Contains(t, out, "3 tags in use")
	assert.NotContains(t, out, "unused")
	assert.Less(t, strings.Index(out, "go"), strings.Index(out, "rust"))

	out, err = run(t, "tags", "--q", "RU")
	require.NoError(t, err)
	assert.Contains(t, out, "1 tags in use")
	assert.Contains(t, out, "rust")
}

func TestUpstreamFailure(t *testing.T) {
	srv := setup(t)
	srv.SetStatus(http.StatusBadGateway)

	_, err := run(t, "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestMissingConfiguration(t *testing.T) {
	setup(t)
	t.Setenv("LINKDECK_API_TOKEN", "")

	_, err := run(t, "list")
	require.Error(t, err)
	assert.True(t, config.IsConfigurationError(err))
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "linkdeck "))
}

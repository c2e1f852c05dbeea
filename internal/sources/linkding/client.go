// Package linkding reads bookmarks and tags from a linkding instance.
package linkding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/utils"
)

const (
	bookmarksPath = "bookmarks/"
	archivedPath  = "bookmarks/archived/"
	tagsPath      = "tags/"

	DefaultInitialPageSize = 500
	DefaultBatchSize       = 200
	DefaultMaxParallel     = 8
	DefaultTagPageSize     = 1000
)

type Options struct {
	BaseURL string // e.g. https://links.example/api
	Token   string

	// HTTPClient defaults to a client with Timeout (0 means no timeout).
	HTTPClient *http.Client
	Timeout    time.Duration

	InitialPageSize int
	BatchSize       int
	MaxParallel     int
	TagPageSize     int

	Logger logger.Logger
}

// Client talks to the linkding REST API. It never retries.
type Client struct {
	base        *url.URL
	token       string
	http        *http.Client
	initialPage int
	batchSize   int
	maxParallel int
	tagPageSize int
	log         logger.Logger
}

// ListOptions selects the bookmark listing.
type ListOptions struct {
	Query        string
	ArchivedOnly bool
}

// PageResult is a single upstream page.
type PageResult struct {
	Bookmarks []domain.Bookmark
	Count     int // total reported by upstream
}

// CompleteResult is the assembled set. Partial is set when some batches failed.
type CompleteResult struct {
	Bookmarks []domain.Bookmark
	Count     int
	Partial   *domain.PartialFetchError
}

// TagPage is a single page of the tag listing.
type TagPage struct {
	Tags    []domain.Tag
	Count   int
	HasNext bool
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("linkding: base url is required")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("linkding: invalid base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("linkding: base url must be absolute, got %q", opts.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	c := &Client{
		base:        base,
		token:       opts.Token,
		http:        opts.HTTPClient,
		initialPage: orDefault(opts.InitialPageSize, DefaultInitialPageSize),
		batchSize:   orDefault(opts.BatchSize, DefaultBatchSize),
		maxParallel: orDefault(opts.MaxParallel, DefaultMaxParallel),
		tagPageSize: orDefault(opts.TagPageSize, DefaultTagPageSize),
		log:         opts.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: opts.Timeout}
	}
	if c.log == nil {
		c.log = logger.NewNop()
	}
	return c, nil
}

// FetchPage issues one bounded listing call.
func (c *Client) FetchPage(ctx context.Context, opts ListOptions, limit, offset int) (PageResult, error) {
	path := bookmarksPath
	if opts.ArchivedOnly {
		path = archivedPath
	}

	q := url.Values{}
	if opts.Query != "" {
		q.Set("q", opts.Query)
	}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var resp listResponse[BookmarkRecord]
	if err := c.get(ctx, path, q, &resp); err != nil {
		return PageResult{}, err
	}
	return PageResult{Bookmarks: MapBookmarks(resp.Results), Count: resp.Count}, nil
}

// FetchAll assembles every record of a listing. One large page is requested
// first; if upstream reports more, the rest is fetched in parallel batches.
// Failed batches degrade the result to what was fetched and are reported in
// CompleteResult.Partial rather than as an error.
func (c *Client) FetchAll(ctx context.Context, opts ListOptions) (CompleteResult, error) {
	first, err := c.FetchPage(ctx, opts, c.initialPage, 0)
	if err != nil {
		return CompleteResult{}, err
	}
	if len(first.Bookmarks) < c.initialPage {
		return CompleteResult{Bookmarks: first.Bookmarks, Count: first.Count}, nil
	}

	fetched := len(first.Bookmarks)
	remaining := first.Count - fetched
	if remaining <= 0 {
		return CompleteResult{Bookmarks: first.Bookmarks, Count: first.Count}, nil
	}

	batches := (remaining + c.batchSize - 1) / c.batchSize
	results := make([][]domain.Bookmark, batches)
	errs := make([]error, batches)

	var g errgroup.Group
	g.SetLimit(c.maxParallel)
	for i := range batches {
		offset := fetched + i*c.batchSize
		g.Go(func() error {
			page, err := c.FetchPage(ctx, opts, c.batchSize, offset)
			if err != nil {
				errs[i] = fmt.Errorf("batch at offset %d: %w", offset, err)
				return nil
			}
			results[i] = page.Bookmarks
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return CompleteResult{}, err
	}

	all := make([]domain.Bookmark, 0, first.Count)
	all = append(all, first.Bookmarks...)
	for _, batch := range results {
		all = append(all, batch...)
	}

	out := CompleteResult{Bookmarks: all, Count: first.Count}
	if combined := multierr.Combine(errs...); combined != nil {
		out.Partial = &domain.PartialFetchError{
			Expected: first.Count,
			Fetched:  len(all),
			Err:      combined,
		}
		c.log.Warn("partial bookmark fetch, continuing with fetched records",
			logger.Bool("archived", opts.ArchivedOnly),
			logger.Int("expected", first.Count),
			logger.Int("fetched", len(all)),
			logger.Int("failed_batches", len(multierr.Errors(combined))),
			logger.Error(combined))
	}
	return out, nil
}

// FetchTags issues one bounded tag listing call.
func (c *Client) FetchTags(ctx context.Context, limit, offset int) (TagPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var resp listResponse[TagRecord]
	if err := c.get(ctx, tagsPath, q, &resp); err != nil {
		return TagPage{}, err
	}
	return TagPage{Tags: MapTags(resp.Results), Count: resp.Count, HasNext: resp.Next != nil}, nil
}

// FetchAllTags pages through the tag listing until upstream reports no next page.
func (c *Client) FetchAllTags(ctx context.Context) ([]domain.Tag, error) {
	var all []domain.Tag
	offset := 0
	for {
		page, err := c.FetchTags(ctx, c.tagPageSize, offset)
		if err != nil {
			return nil, err
		}
		if all == nil {
			all = make([]domain.Tag, 0, page.Count)
		}
		all = append(all, page.Tags...)
		offset += len(page.Tags)

		if !page.HasNext || len(page.Tags) == 0 {
			return all, nil
		}
	}
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.base.JoinPath(path)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer utils.DrainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.UpstreamError{
			Method:     http.MethodGet,
			Endpoint:   "/" + path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

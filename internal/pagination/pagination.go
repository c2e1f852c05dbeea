// Package pagination slices ordered results into pages and builds the
// absolute next/previous links that reproduce the caller's query.
package pagination

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	PageParam   = "page"
	LimitParam  = "limit"
	OffsetParam = "offset"
)

// Page is one page-numbered slice of a larger ordered result.
type Page[T any] struct {
	Items       []T
	Total       int
	Page        int
	Size        int
	HasNext     bool
	HasPrevious bool
}

// Paginate returns the items of page (1-based) for the given size.
// A page past the end yields no items but still reports HasPrevious.
func Paginate[T any](items []T, page, size int) Page[T] {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 1
	}
	total := len(items)
	offset := mulSat(page-1, size)

	return Page[T]{
		Items:       window(items, offset, size),
		Total:       total,
		Page:        page,
		Size:        size,
		HasNext:     offset < total && size < total-offset,
		HasPrevious: page > 1,
	}
}

// Window is an offset/limit slice of a larger ordered result.
type Window[T any] struct {
	Items       []T
	Total       int
	Offset      int
	Limit       int
	HasNext     bool
	HasPrevious bool
}

// Slice returns items[offset:offset+limit], clamped to the bounds of items.
func Slice[T any](items []T, offset, limit int) Window[T] {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 1
	}
	total := len(items)

	return Window[T]{
		Items:       window(items, offset, limit),
		Total:       total,
		Offset:      offset,
		Limit:       limit,
		HasNext:     offset < total && limit < total-offset,
		HasPrevious: offset > 0,
	}
}

func window[T any](items []T, offset, size int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + min(size, len(items)-offset)
	return items[offset:end]
}

// mulSat multiplies two non-negative ints, saturating at math.MaxInt.
func mulSat(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt/b {
		return math.MaxInt
	}
	return a * b
}

// addSat adds two non-negative ints, saturating at math.MaxInt.
func addSat(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

// NextURL returns the link to the page after p, or nil when there is none.
func (p Page[T]) NextURL(r *http.Request) *string {
	if !p.HasNext {
		return nil
	}
	return ptr(PageURL(r, addSat(p.Page, 1)))
}

// PreviousURL returns the link to the page before p, or nil on the first page.
func (p Page[T]) PreviousURL(r *http.Request) *string {
	if !p.HasPrevious {
		return nil
	}
	return ptr(PageURL(r, p.Page-1))
}

// NextURL returns the link to the window after w, or nil when there is none.
func (w Window[T]) NextURL(r *http.Request) *string {
	if !w.HasNext {
		return nil
	}
	return ptr(OffsetURL(r, addSat(w.Offset, w.Limit)))
}

// PreviousURL returns the link to the window before w, or nil at offset 0.
func (w Window[T]) PreviousURL(r *http.Request) *string {
	if !w.HasPrevious {
		return nil
	}
	return ptr(OffsetURL(r, max(w.Offset-w.Limit, 0)))
}

// PageURL rebuilds the absolute request URL with only the page parameter
// changed. Page 1 drops the parameter.
func PageURL(r *http.Request, page int) string {
	return withParam(r, PageParam, page, 1)
}

// OffsetURL rebuilds the absolute request URL with only the offset
// parameter changed. Offset 0 drops the parameter.
func OffsetURL(r *http.Request, offset int) string {
	return withParam(r, OffsetParam, offset, 0)
}

func withParam(r *http.Request, name string, value, implicit int) string {
	q := r.URL.Query()
	if value == implicit {
		q.Del(name)
	} else {
		q.Set(name, strconv.Itoa(value))
	}

	u := url.URL{
		Scheme:   scheme(r),
		Host:     r.Host,
		Path:     r.URL.Path,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return "https"
	}
	return "http"
}

func ptr(s string) *string { return &s }

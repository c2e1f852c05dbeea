// Package filter turns a bookmark set and criteria into an ordered (and
// optionally grouped) list. Everything here is pure and synchronous.
package filter

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/MrSnakeDoc/linkdeck/internal/domain"
)

// Engine applies filter predicates, then a stable sort.
// Collators and casers are not safe for concurrent use, so each Apply builds its own.
type Engine struct {
	lang language.Tag
}

// New creates an engine that orders titles using the collation rules of lang.
func New(lang language.Tag) *Engine {
	return &Engine{lang: lang}
}

// Apply returns the records matching c, ordered by c.Sort. The input is not modified.
func (e *Engine) Apply(records []domain.Bookmark, c domain.Criteria) []domain.Bookmark {
	c = c.Normalize()
	m := newMatcher(c)

	out := make([]domain.Bookmark, 0, len(records))
	for i := range records {
		if m.match(&records[i]) {
			out = append(out, records[i])
		}
	}

	e.sort(out, c.Sort)
	return out
}

// Sort orders records in place. Records with equal keys keep their relative order.
func (e *Engine) Sort(records []domain.Bookmark, mode domain.SortMode) {
	e.sort(records, mode)
}

func (e *Engine) sort(records []domain.Bookmark, mode domain.SortMode) {
	switch mode {
	case domain.SortOldest:
		slices.SortStableFunc(records, func(a, b domain.Bookmark) int {
			return a.DateAdded.Compare(b.DateAdded)
		})
	case domain.SortTitleAsc, domain.SortTitleDesc:
		col := collate.New(e.lang)
		sign := 1
		if mode == domain.SortTitleDesc {
			sign = -1
		}
		slices.SortStableFunc(records, func(a, b domain.Bookmark) int {
			return sign * col.CompareString(a.Title, b.Title)
		})
	default:
		slices.SortStableFunc(records, func(a, b domain.Bookmark) int {
			return b.DateAdded.Compare(a.DateAdded)
		})
	}
}

// matcher holds the per-call predicate state.
type matcher struct {
	fold     cases.Caser
	query    string
	tags     []string
	archived *bool
	unread   bool
	shared   bool
}

func newMatcher(c domain.Criteria) *matcher {
	m := &matcher{
		fold:     cases.Fold(),
		tags:     c.Tags,
		archived: c.Archived,
		unread:   c.Unread,
		shared:   c.Shared,
	}
	if c.Query != "" {
		m.query = m.fold.String(c.Query)
	}
	return m
}

func (m *matcher) match(b *domain.Bookmark) bool {
	if m.archived != nil && b.IsArchived != *m.archived {
		return false
	}
	if m.unread && !b.Unread {
		return false
	}
	if m.shared && !b.Shared {
		return false
	}
	for _, tag := range m.tags {
		if !b.HasTag(tag) {
			return false
		}
	}
	return m.query == "" || m.matchText(b)
}

// matchText is a case-insensitive substring match against title, URL,
// description and tag names. Any field matching is enough.
func (m *matcher) matchText(b *domain.Bookmark) bool {
	if m.contains(b.Title) || m.contains(b.URL) || m.contains(b.Description) {
		return true
	}
	for _, tag := range b.TagNames {
		if m.contains(tag) {
			return true
		}
	}
	return false
}

func (m *matcher) contains(field string) bool {
	if field == "" {
		return false
	}
	return strings.Contains(m.fold.String(field), m.query)
}

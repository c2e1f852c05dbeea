package domain

import "slices"

// SortMode is the ordering applied after filtering.
type SortMode string

const (
	SortNewest    SortMode = "new"
	SortOldest    SortMode = "old"
	SortTitleAsc  SortMode = "title-asc"
	SortTitleDesc SortMode = "title-desc"
)

// DefaultSort is the implicit sort when none is requested.
const DefaultSort = SortNewest

// Valid reports whether m is one of the known sort modes.
func (m SortMode) Valid() bool {
	switch m {
	case SortNewest, SortOldest, SortTitleAsc, SortTitleDesc:
		return true
	}
	return false
}

// Criteria is the search/filter/sort state carried in the URL.
//
// Zero values mean "no filter": empty Query, nil Tags, nil Archived (any),
// Unread/Shared false (no filtering, never "read only"). Sort and Page are
// normalized to DefaultSort and 1.
type Criteria struct {
	Query string
	// Tags uses AND semantics: a record must carry every listed tag.
	Tags     []string
	Archived *bool
	Unread   bool
	Shared   bool
	Sort     SortMode
	Page     int
}

// Normalize returns a copy with defaults applied and empty tags dropped.
func (c Criteria) Normalize() Criteria {
	out := c
	if !out.Sort.Valid() {
		out.Sort = DefaultSort
	}
	if out.Page < 1 {
		out.Page = 1
	}
	var tags []string
	for _, t := range c.Tags {
		if t != "" {
			tags = append(tags, t)
		}
	}
	out.Tags = tags
	if c.Archived != nil {
		v := *c.Archived
		out.Archived = &v
	}
	return out
}

// Equal compares two criteria after normalization.
func (c Criteria) Equal(other Criteria) bool {
	a, b := c.Normalize(), other.Normalize()
	if a.Query != b.Query || a.Unread != b.Unread || a.Shared != b.Shared ||
		a.Sort != b.Sort || a.Page != b.Page {
		return false
	}
	if (a.Archived == nil) != (b.Archived == nil) {
		return false
	}
	if a.Archived != nil && *a.Archived != *b.Archived {
		return false
	}
	return slices.Equal(a.Tags, b.Tags)
}

// IsDefault reports whether c selects everything with the default ordering.
func (c Criteria) IsDefault() bool {
	return c.Equal(Criteria{})
}

// ActiveFilterCount counts active facets: archived-only, unread, shared and one per tag.
func (c Criteria) ActiveFilterCount() int {
	n := len(c.Tags)
	if c.Archived != nil && *c.Archived {
		n++
	}
	if c.Unread {
		n++
	}
	if c.Shared {
		n++
	}
	return n
}

// ToggleTag adds tag when absent and removes it when present. Page resets to 1.
func (c Criteria) ToggleTag(tag string) Criteria {
	if slices.Contains(c.Tags, tag) {
		return c.WithoutTag(tag)
	}
	out := c.withPageReset()
	out.Tags = append(slices.Clone(c.Tags), tag)
	return out
}

// WithoutTag removes tag. Page resets to 1.
func (c Criteria) WithoutTag(tag string) Criteria {
	out := c.withPageReset()
	var tags []string
	for _, t := range c.Tags {
		if t != tag {
			tags = append(tags, t)
		}
	}
	out.Tags = tags
	return out
}

// WithQuery replaces the free-text query. Page resets to 1.
func (c Criteria) WithQuery(q string) Criteria {
	out := c.withPageReset()
	out.Query = q
	return out
}

// WithSort replaces the sort mode. Page resets to 1.
func (c Criteria) WithSort(m SortMode) Criteria {
	out := c.withPageReset()
	out.Sort = m
	return out
}

// WithPage replaces the page only.
func (c Criteria) WithPage(page int) Criteria {
	out := c
	out.Page = page
	return out
}

// Cleared drops every filter and restores the default sort.
func (c Criteria) Cleared() Criteria {
	return Criteria{Sort: DefaultSort, Page: 1}
}

func (c Criteria) withPageReset() Criteria {
	out := c
	out.Page = 1
	return out
}

// Bool returns a pointer to v, for building tri-state criteria.
func Bool(v bool) *bool {
	return &v
}

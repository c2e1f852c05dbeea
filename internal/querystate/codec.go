// Package querystate maps filter criteria to and from URL query strings.
//
// Encoding omits every parameter that equals its implicit default, so the
// default criteria encode to the empty string and every URL is canonical.
package querystate

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/linkdeck/internal/domain"
)

// Query parameter names.
const (
	ParamQuery    = "q"
	ParamTags     = "tags"
	ParamArchived = "archived"
	ParamUnread   = "unread"
	ParamShared   = "shared"
	ParamSort     = "sort"
	ParamPage     = "page"
)

const flagOn = "1"

// Decode builds criteria from query values. Unknown or malformed values fall
// back to defaults; Decode never fails.
func Decode(values url.Values) domain.Criteria {
	c := domain.Criteria{
		Query: values.Get(ParamQuery),
		Tags:  splitTags(values.Get(ParamTags)),
		Sort:  domain.SortMode(values.Get(ParamSort)),
		Page:  parsePage(values.Get(ParamPage)),
	}

	switch values.Get(ParamArchived) {
	case "1":
		c.Archived = domain.Bool(true)
	case "0":
		c.Archived = domain.Bool(false)
	}

	// unread/shared only recognize "1"; anything else means "no filter".
	c.Unread = values.Get(ParamUnread) == flagOn
	c.Shared = values.Get(ParamShared) == flagOn

	if !c.Sort.Valid() {
		c.Sort = domain.DefaultSort
	}
	return c
}

// DecodeString parses a raw query string, with or without a leading '?'.
func DecodeString(raw string) (domain.Criteria, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return domain.Criteria{}, err
	}
	return Decode(values), nil
}

// Values encodes criteria, omitting defaulted parameters.
func Values(c domain.Criteria) url.Values {
	c = c.Normalize()
	values := url.Values{}

	if c.Query != "" {
		values.Set(ParamQuery, c.Query)
	}
	if len(c.Tags) > 0 {
		values.Set(ParamTags, strings.Join(c.Tags, ","))
	}
	if c.Archived != nil {
		if *c.Archived {
			values.Set(ParamArchived, "1")
		} else {
			values.Set(ParamArchived, "0")
		}
	}
	if c.Unread {
		values.Set(ParamUnread, flagOn)
	}
	if c.Shared {
		values.Set(ParamShared, flagOn)
	}
	if c.Sort != domain.DefaultSort {
		values.Set(ParamSort, string(c.Sort))
	}
	if c.Page > 1 {
		values.Set(ParamPage, strconv.Itoa(c.Page))
	}
	return values
}

// Encode returns the canonical query string (without '?').
func Encode(c domain.Criteria) string {
	return Values(c).Encode()
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func parsePage(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

package domain

import (
	"strings"
	"time"
)

// Tag is an upstream tag record.
type Tag struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	DateAdded time.Time `json:"date_added"`
}

// TagUsage is a tag together with the number of loaded bookmarks carrying it.
type TagUsage struct {
	Tag
	Count int `json:"count"`
}

// equalFold is the single case-insensitive comparison used for tag matching.
func equalFold(a, b string) bool {
	return strings.EqualFold(a, b)
}

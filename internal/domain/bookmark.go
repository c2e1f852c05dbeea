package domain

import (
	"net/url"
	"time"
)

// Bookmark is the read-only copy of an upstream bookmark record.
//
// Records are owned by the upstream API. Linkdeck never mutates them; the whole
// set is replaced when the retrieval cache refreshes.
type Bookmark struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is unique within one upstream account.
	ID int64 `json:"id"`

	// URL is the bookmarked address.
	URL string `json:"url"`

	// ─────────────────────────────
	// Descriptive fields
	// ─────────────────────────────

	Title       string `json:"title"`
	Description string `json:"description"`
	Notes       string `json:"notes"`

	// WebsiteTitle and WebsiteDescription are scraped by the upstream service.
	WebsiteTitle       *string `json:"website_title"`
	WebsiteDescription *string `json:"website_description"`

	// WebArchiveSnapshotURL points to an archive.org capture, if any.
	WebArchiveSnapshotURL *string `json:"web_archive_snapshot_url"`

	// FaviconURL and PreviewImageURL are always nil: upstream does not supply them.
	FaviconURL      *string `json:"favicon_url"`
	PreviewImageURL *string `json:"preview_image_url"`

	// ─────────────────────────────
	// Facets
	// ─────────────────────────────

	IsArchived bool `json:"is_archived"`
	Unread     bool `json:"unread"`
	Shared     bool `json:"shared"`

	// TagNames keeps upstream insertion order. Values are case-sensitive.
	TagNames []string `json:"tag_names"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	DateAdded    time.Time `json:"date_added"`
	DateModified time.Time `json:"date_modified"`
}

// HasTag reports whether the bookmark carries tag, ignoring case.
func (b *Bookmark) HasTag(tag string) bool {
	for _, name := range b.TagNames {
		if equalFold(name, tag) {
			return true
		}
	}
	return false
}

// DisplayTitle is the title, or the URL's host when the title is empty.
func (b *Bookmark) DisplayTitle() string {
	if b.Title != "" {
		return b.Title
	}
	if u, err := url.Parse(b.URL); err == nil && u.Host != "" {
		return u.Host
	}
	return b.URL
}

// UniqueTags returns the tag names with exact duplicates removed, preserving order.
func (b *Bookmark) UniqueTags() []string {
	if len(b.TagNames) < 2 {
		return b.TagNames
	}
	seen := make(map[string]struct{}, len(b.TagNames))
	out := make([]string, 0, len(b.TagNames))
	for _, name := range b.TagNames {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Snapshot is one complete fetch of the upstream bookmark set.
type Snapshot struct {
	Bookmarks []Bookmark `json:"bookmarks"`
	FetchedAt time.Time  `json:"fetched_at"`

	// Incomplete is set when some upstream batches failed and the set is partial.
	Incomplete *PartialFetchError `json:"incomplete,omitempty"`
}

// Len returns the number of records in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bookmarks)
}

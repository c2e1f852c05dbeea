package linkding

import "time"

// listResponse is the envelope of every paginated linkding listing.
type listResponse[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// BookmarkRecord is a bookmark as returned by /api/bookmarks/.
type BookmarkRecord struct {
	ID                    int64     `json:"id"`
	URL                   string    `json:"url"`
	Title                 string    `json:"title"`
	Description           string    `json:"description"`
	Notes                 string    `json:"notes"`
	WebArchiveSnapshotURL *string   `json:"web_archive_snapshot_url"`
	WebsiteTitle          *string   `json:"website_title"`
	WebsiteDescription    *string   `json:"website_description"`
	IsArchived            bool      `json:"is_archived"`
	Unread                bool      `json:"unread"`
	Shared                bool      `json:"shared"`
	TagNames              []string  `json:"tag_names"`
	DateAdded             time.Time `json:"date_added"`
	DateModified          time.Time `json:"date_modified"`
}

// TagRecord is a tag as returned by /api/tags/.
type TagRecord struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	DateAdded time.Time `json:"date_added"`
}

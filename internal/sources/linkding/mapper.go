package linkding

import "github.com/MrSnakeDoc/linkdeck/internal/domain"

// MapBookmark copies an upstream record into the domain shape.
// Favicon and preview image are left nil: linkding's API does not expose them.
func MapBookmark(r BookmarkRecord) domain.Bookmark {
	tags := r.TagNames
	if tags == nil {
		tags = []string{}
	}
	return domain.Bookmark{
		ID:                    r.ID,
		URL:                   r.URL,
		Title:                 r.Title,
		Description:           r.Description,
		Notes:                 r.Notes,
		WebsiteTitle:          r.WebsiteTitle,
		WebsiteDescription:    r.WebsiteDescription,
		WebArchiveSnapshotURL: r.WebArchiveSnapshotURL,
		FaviconURL:            nil,
		PreviewImageURL:       nil,
		IsArchived:            r.IsArchived,
		Unread:                r.Unread,
		Shared:                r.Shared,
		TagNames:              tags,
		DateAdded:             r.DateAdded,
		DateModified:          r.DateModified,
	}
}

func MapBookmarks(records []BookmarkRecord) []domain.Bookmark {
	out := make([]domain.Bookmark, 0, len(records))
	for _, r := range records {
		out = append(out, MapBookmark(r))
	}
	return out
}

func MapTags(records []TagRecord) []domain.Tag {
	out := make([]domain.Tag, 0, len(records))
	for _, r := range records {
		out = append(out, domain.Tag{ID: r.ID, Name: r.Name, DateAdded: r.DateAdded})
	}
	return out
}

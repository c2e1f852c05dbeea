package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/pagination"
	"github.com/MrSnakeDoc/linkdeck/internal/querystate"
)

type bookmarksResponse struct {
	Count    int               `json:"count"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
	Results  []domain.Bookmark `json:"results"`
}

// Bookmarks serves one page of the filtered and sorted bookmark set.
func Bookmarks(d deps.Deps) http.HandlerFunc {
	cacheControl := listingCacheControl(d.CacheTTL)

	return func(w http.ResponseWriter, r *http.Request) {
		c := querystate.Decode(r.URL.Query())
		size := pageSize(r, d.PageSize, d.MaxPageSize)

		page, err := d.Catalog.List(r.Context(), c, size)
		if err != nil {
			d.Logger.Error("failed to list bookmarks",
				logger.String("query", r.URL.RawQuery),
				logger.Error(err))
			writeError(w, d.Logger, http.StatusInternalServerError, "failed to fetch bookmarks")
			return
		}

		w.Header().Set("Cache-Control", cacheControl)
		writeJSON(w, d.Logger, http.StatusOK, bookmarksResponse{
			Count:    page.Total,
			Next:     page.NextURL(r),
			Previous: page.PreviousURL(r),
			Results:  page.Items,
		})
	}
}

// pageSize reads limit, falling back to def and capping at max.
func pageSize(r *http.Request, def, maxSize int) int {
	n := intParam(r, pagination.LimitParam, def)
	if n == 0 {
		n = def
	}
	if maxSize > 0 && n > maxSize {
		n = maxSize
	}
	return n
}

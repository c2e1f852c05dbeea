package handlers

import (
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/linkdeck/internal/catalog"
	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/pagination"
)

const defaultTagLimit = 100

type tagsResponse struct {
	Count    int               `json:"count"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
	Results  []domain.TagUsage `json:"results"`
}

// Tags serves used tags ranked by usage, optionally narrowed by q.
func Tags(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := catalog.TagQuery{
			Search: strings.TrimSpace(r.URL.Query().Get("q")),
			Limit:  intParam(r, pagination.LimitParam, defaultTagLimit),
			Offset: intParam(r, pagination.OffsetParam, 0),
		}
		if q.Limit == 0 {
			q.Limit = defaultTagLimit
		}

		win, err := d.Catalog.Tags(r.Context(), q)
		if err != nil {
			d.Logger.Error("failed to list tags", logger.Error(err))
			writeError(w, d.Logger, http.StatusInternalServerError, "failed to fetch tags")
			return
		}

		writeJSON(w, d.Logger, http.StatusOK, tagsResponse{
			Count:    win.Total,
			Next:     win.NextURL(r),
			Previous: win.PreviousURL(r),
			Results:  win.Items,
		})
	}
}

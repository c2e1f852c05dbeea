package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/linkdeck/internal/filter"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/querystate"
)

type groupsResponse struct {
	Count  int            `json:"count"`
	Groups []filter.Group `json:"groups"`
}

// Groups serves the whole filtered set fanned out per tag. page and limit
// are ignored.
func Groups(d deps.Deps) http.HandlerFunc {
	cacheControl := listingCacheControl(d.CacheTTL)

	return func(w http.ResponseWriter, r *http.Request) {
		c := querystate.Decode(r.URL.Query())

		groups, count, err := d.Catalog.Groups(r.Context(), c)
		if err != nil {
			d.Logger.Error("failed to group bookmarks",
				logger.String("query", r.URL.RawQuery),
				logger.Error(err))
			writeError(w, d.Logger, http.StatusInternalServerError, "failed to fetch bookmarks")
			return
		}
		if groups == nil {
			groups = []filter.Group{}
		}

		w.Header().Set("Cache-Control", cacheControl)
		writeJSON(w, d.Logger, http.StatusOK, groupsResponse{Count: count, Groups: groups})
	}
}

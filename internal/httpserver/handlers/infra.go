package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/linkdeck/internal/catalog"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
)

const redisPingTimeout = 2 * time.Second

type componentStatus struct {
	OK            bool   `json:"ok"`
	Bookmarks     *int   `json:"bookmarks,omitempty"`
	Tags          *int   `json:"tags,omitempty"`
	IndexedTags   *int   `json:"indexed_tags,omitempty"`
	Missing       *int   `json:"missing,omitempty"`
	CachedEntries *int   `json:"cached_entries,omitempty"`
	Inflight      *int   `json:"inflight,omitempty"`
	LastFetch     string `json:"last_fetch,omitempty"`
	Mode          string `json:"mode,omitempty"`
	Impact        string `json:"impact,omitempty"`
	Error         string `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := d.Catalog.Stats()

		components := map[string]componentStatus{
			"upstream": upstreamStatus(st),
			"cache": {
				OK:            true,
				CachedEntries: &st.CachedEntries,
				Inflight:      &st.Inflight,
			},
			"redis": checkRedis(r.Context(), d),
		}

		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, d.Logger, http.StatusOK, infraResponse{
			Status:     determineStatus(components),
			Components: components,
		})
	}
}

func upstreamStatus(st catalog.Stats) componentStatus {
	cs := componentStatus{
		OK:          !st.LastFetch.IsZero() && st.LastError == "",
		Bookmarks:   &st.Bookmarks,
		Tags:        &st.Tags,
		IndexedTags: &st.IndexedTags,
		LastFetch:   "never",
		Mode:        "complete",
		Error:       st.LastError,
	}
	if !st.LastFetch.IsZero() {
		cs.LastFetch = st.LastFetch.UTC().Format(time.RFC3339)
	}
	if st.Partial {
		cs.Mode = "partial"
		cs.Missing = &st.Missing
	}
	return cs
}

func determineStatus(components map[string]componentStatus) string {
	// Nothing can be served without a snapshot
	if up, ok := components["upstream"]; ok && !up.OK {
		return "critical"
	}
	if up := components["upstream"]; up.Mode == "partial" {
		return "degraded"
	}
	// Redis is optional; a configured but unreachable one only loses sharing
	if rd, ok := components["redis"]; ok && !rd.OK && rd.Mode != "disabled" {
		return "degraded"
	}
	return "operational"
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{
			OK:     true,
			Mode:   "disabled",
			Impact: "snapshot-sharing-disabled",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "snapshot-sharing-unavailable",
			Error:  err.Error(),
		}
	}

	return componentStatus{
		OK:     true,
		Mode:   "shared",
		Impact: "snapshot-sharing-enabled",
	}
}

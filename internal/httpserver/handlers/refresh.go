package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/utils"
)

type refreshResponse struct {
	Status string `json:"status"`
}

// Refresh drops the cached listings right away and queues a background re-fetch.
func Refresh(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d.Catalog.Invalidate(r.Context())

		status := "refresh scheduled"
		if d.RefreshTrigger != nil && !d.RefreshTrigger() {
			status = "refresh already pending"
		}

		d.Logger.Info("manual refresh requested",
			logger.String("remote_ip", utils.ClientIP(r, d.TrustProxy)),
			logger.String("status", status))

		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, d.Logger, http.StatusAccepted, refreshResponse{Status: status})
	}
}

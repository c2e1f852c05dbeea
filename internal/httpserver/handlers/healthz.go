package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdeck/internal/version"
)

type healthzResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	version.Info
}

// Healthz is the liveness probe: it answers as long as the process serves HTTP.
func Healthz(d deps.Deps) http.HandlerFunc {
	now := d.TimeNow
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, d.Logger, http.StatusOK, healthzResponse{
			Status:        "ok",
			UptimeSeconds: now().Sub(d.StartTime).Seconds(),
			Info:          d.Build,
		})
	}
}

package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready bool `json:"ready"`
}

// Readyz reports ready once a bookmark snapshot has been loaded.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		ready := d.Catalog.Ready()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, d.Logger, status, readyzResponse{Ready: ready})
	}
}

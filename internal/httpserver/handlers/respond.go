package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/MrSnakeDoc/linkdeck/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, log logger.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("failed to write response", logger.Error(err))
	}
}

// writeError sends a generic message; details belong in the log, not the body.
func writeError(w http.ResponseWriter, log logger.Logger, status int, msg string) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, log, status, errorResponse{Error: msg})
}

// listingCacheControl lets shared caches keep a listing for the retrieval
// TTL and serve it stale while they revalidate.
func listingCacheControl(ttl time.Duration) string {
	return fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate=300", int(ttl.Seconds()))
}

// intParam parses a non-negative integer query parameter. Missing or
// malformed values yield def.
func intParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

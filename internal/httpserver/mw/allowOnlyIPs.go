package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/utils"
)

// AllowOnlyCIDRS restricts a route group to the given addresses and
// prefixes. With an empty (or entirely invalid) list every client passes.
// Set trustProxy when a reverse proxy or tunnel (e.g. cloudflared) sits in
// front, so the forwarded client address is checked instead of the proxy's.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if bad := m.Invalid(); len(bad) > 0 {
		log.Warn("AllowOnlyCIDRS: ignoring invalid entries", logger.Strings("entries", bad))
	}
	if m.IsEmpty() {
		log.Debug("AllowOnlyCIDRS: empty matcher, passthrough mode")
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if m.Allow(ip) {
				next.ServeHTTP(w, r)
				return
			}
			log.Debug("AllowOnlyCIDRS: rejected",
				logger.String("ip", ip),
				logger.String("path", r.URL.Path))
			reject(w, http.StatusForbidden)
		})
	}
}

package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/mw"
)

func init() { Register("api", mountAPI) }

// mountAPI mounts the endpoints consumed by the front-end. They share one
// rate limiter, so a client's budget covers the whole /api tree.
func mountAPI(r chi.Router, d deps.Deps) {
	r.Route("/api", func(api chi.Router) {
		api.Use(
			mw.EnforceHost(d.AllowedHosts, d.Logger),
			mw.CORS(d.CORSOrigins),
			mw.RateLimit(mw.RateLimitConfig{
				Burst:             d.RateBurst,
				RefillPerIPPerMin: d.RatePerMin,
				MaxEntries:        10000,
				TrustProxy:        d.TrustProxy,
				Now:               d.TimeNow,
			}),
		)

		api.Get("/bookmarks", handlers.Bookmarks(d))
		api.Get("/bookmarks/groups", handlers.Groups(d))
		api.Get("/tags", handlers.Tags(d))
		api.Post("/refresh", handlers.Refresh(d))
	})
}

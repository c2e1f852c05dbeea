package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/mw"
)

func init() { Register("ops", mountOps) }

// mountOps serves probes and diagnostics, restricted to the allowed CIDRs.
func mountOps(r chi.Router, d deps.Deps) {
	ops := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	ops.Get("/healthz", handlers.Healthz(d))
	ops.Get("/readyz", handlers.Readyz(d))
	ops.Get("/infra", handlers.Infra(d))
}

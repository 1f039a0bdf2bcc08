package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/serverlist/internal/httpserver/deps"
	"github.com/MrSnakeDoc/serverlist/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/serverlist/internal/httpserver/mw"
)

func init() { Register("health", registerHealth) }

func registerHealth(r chi.Router, d deps.Deps) bool {
	r.Get("/healthz", handlers.Healthz(d))

	internal := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, handlers.CallerHeader, d.Logger))
	internal.Get("/readyz", handlers.Readyz(d))
	internal.Get("/infra", handlers.Infra(d))
	return true
}

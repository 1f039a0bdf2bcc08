package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/serverlist/internal/httpserver/deps"
	"github.com/MrSnakeDoc/serverlist/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/serverlist/internal/httpserver/mw"
)

func init() { Register("servers", registerServers) }

func registerServers(r chi.Router, d deps.Deps) bool {
	guarded := r.With(
		mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, handlers.CallerHeader, d.Logger),
		mw.EnforceHost(d.AllowedHosts, handlers.CallerHeader, d.Logger),
	)

	guarded.With(mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.RateBurst,
		RefillPerIPPerMin: d.RatePerMin,
		MaxEntries:        4096,
		TrustProxy:        d.TrustProxy,
		Key:               callerKey,
	})).Post("/servers", handlers.Command(d))
	guarded.Get("/servers/{id}/query", handlers.Query(d))
	guarded.Post("/poll", handlers.Poll(d))
	return true
}

// callerKey gives every caller its own bucket per client IP.
func callerKey(r *http.Request, ip string) string {
	return ip + "|" + r.Header.Get(handlers.CallerHeader)
}

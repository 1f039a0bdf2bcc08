package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrSnakeDoc/serverlist/internal/httpserver/deps"
	"github.com/MrSnakeDoc/serverlist/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/serverlist/internal/httpserver/mw"
)

func init() { Register("metrics", registerMetrics) }

func registerMetrics(r chi.Router, d deps.Deps) bool {
	if d.Gatherer == nil {
		return false
	}
	r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, handlers.CallerHeader, d.Logger)).
		Method("GET", "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	return true
}

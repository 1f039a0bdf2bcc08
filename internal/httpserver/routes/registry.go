// Package routes holds the HTTP route groups. Each file registers its group
// from init so server.go only calls RegisterAll.
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/serverlist/internal/httpserver/deps"
)

type (
	// Registrar mounts a route group. It returns false when the group is
	// disabled by d (no metrics gatherer, ...).
	Registrar  func(r chi.Router, d deps.Deps) bool
	Middleware = func(http.Handler) http.Handler
)

type group struct {
	name string
	reg  Registrar
	mws  []Middleware
}

var groups []group

// Register adds a named route group with optional group-wide middlewares.
// Names must be unique.
func Register(name string, reg Registrar, mws ...Middleware) {
	for _, g := range groups {
		if g.name == name {
			panic("routes: group " + name + " registered twice")
		}
	}
	groups = append(groups, group{name: name, reg: reg, mws: mws})
}

// RegisterAll mounts every group on r and returns the names of the groups
// that were enabled, in registration order.
func RegisterAll(r chi.Router, d deps.Deps) []string {
	mounted := make([]string, 0, len(groups))
	for _, g := range groups {
		target := r
		if len(g.mws) > 0 {
			target = r.With(g.mws...)
		}
		if g.reg(target, d) {
			mounted = append(mounted, g.name)
		}
	}
	return mounted
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/serverlist/internal/httpserver/deps"
)

type componentStatus struct {
	OK      bool   `json:"ok"`
	Mode    string `json:"mode,omitempty"`
	Servers *int   `json:"servers,omitempty"`
	Cached  *int   `json:"cached,omitempty"`
	Error   string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Infra summarizes the backend, the registry and the status poller.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		servers := len(d.Registry.IDs())
		cached := 0
		for _, id := range d.Registry.IDs() {
			if _, ok := d.Registry.Query(id); ok {
				cached++
			}
		}

		poller := componentStatus{OK: true, Mode: "periodic"}
		if d.PollTrigger == nil {
			poller = componentStatus{OK: true, Mode: "disabled"}
		}

		components := map[string]componentStatus{
			"backend":  checkBackend(r.Context(), d),
			"registry": {OK: true, Servers: &servers, Cached: &cached},
			"poller":   poller,
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	if backend, ok := components["backend"]; ok && !backend.OK {
		return "degraded" // changes are kept in memory only
	}
	return "ok"
}

func checkBackend(ctx context.Context, d deps.Deps) componentStatus {
	if d.Ping == nil {
		return componentStatus{OK: true, Mode: d.Backend}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.Ping(ctx); err != nil {
		return componentStatus{OK: false, Mode: d.Backend, Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: d.Backend}
}

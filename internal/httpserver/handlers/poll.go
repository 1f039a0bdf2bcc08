package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/serverlist/internal/httpserver/deps"
	"github.com/MrSnakeDoc/serverlist/internal/logger"
)

// Poll triggers an immediate status poll round.
func Poll(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.PollTrigger == nil {
			http.Error(w, "status poller is disabled", http.StatusNotFound)
			return
		}

		select {
		case d.PollTrigger <- struct{}{}:
			d.Logger.Info("manual status poll triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusAccepted)
			if _, err := w.Write([]byte("✅ Status poll triggered\n")); err != nil {
				d.Logger.Debug("failed to write response", logger.Error(err))
			}
		default:
			d.Logger.Warn("status poll already pending",
				logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusTooManyRequests)
			if _, err := w.Write([]byte("⏳ Status poll already pending, please wait\n")); err != nil {
				d.Logger.Debug("failed to write response", logger.Error(err))
			}
		}
	}
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/serverlist/internal/domain"
	"github.com/MrSnakeDoc/serverlist/internal/httpserver/deps"
	"github.com/MrSnakeDoc/serverlist/internal/logger"
	"github.com/MrSnakeDoc/serverlist/internal/perms"
)

// CallerHeader names the principal a request acts for.
const CallerHeader = "X-Caller"

const maxCommandBody = 64 << 10

type commandRequest struct {
	Args []string `json:"args"`
	Line string   `json:"line"`
}

type commandResponse struct {
	OK       bool     `json:"ok"`
	Messages []string `json:"messages"`
}

// bufferSender collects command replies for the HTTP response.
type bufferSender struct {
	name string
	msgs []string
}

func (s *bufferSender) Name() string           { return s.name }
func (s *bufferSender) SendMessage(msg string) { s.msgs = append(s.msgs, msg) }

// Command runs one "servers" invocation on behalf of the X-Caller principal.
// The body is {"args": [...]} or {"line": "add alpha 10.0.0.5"}.
func Command(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := strings.TrimSpace(r.Header.Get(CallerHeader))
		if caller == "" {
			http.Error(w, "missing "+CallerHeader+" header", http.StatusUnauthorized)
			return
		}

		var req commandRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBody)).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		args := req.Args
		if len(args) == 0 {
			args = strings.Fields(req.Line)
		}

		s := &bufferSender{name: caller, msgs: []string{}}
		ok := d.Command.Execute(r.Context(), s, args)

		d.Logger.Debug("servers command",
			logger.String("caller", caller),
			logger.Any("args", args),
			logger.Bool("ok", ok))

		status := http.StatusOK
		if !ok {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, commandResponse{OK: ok, Messages: s.msgs})
	}
}

// Query returns the cached status entries of one server, optionally
// narrowed to a single ?tag=. Callers without the view-IP permission get
// entries with the peer address fields removed, matching what ls shows them.
func Query(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := strings.TrimSpace(r.Header.Get(CallerHeader))
		if caller == "" {
			http.Error(w, "missing "+CallerHeader+" header", http.StatusUnauthorized)
			return
		}
		if !d.Perms.HasPermission(caller, perms.Servers) || !d.Perms.HasPermission(caller, perms.Read) {
			http.Error(w, perms.DeniedMessage, http.StatusForbidden)
			return
		}

		viewIP := d.Perms.HasPermission(caller, perms.ViewIP)

		id := chi.URLParam(r, "id")
		if !d.Registry.Has(id) {
			http.Error(w, id+" does not exist", http.StatusNotFound)
			return
		}

		if tag := r.URL.Query().Get("tag"); tag != "" {
			entry, ok := d.Registry.QueryTag(id, tag)
			if !ok {
				http.Error(w, "no "+tag+" entry for "+id, http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, disclose(map[string]domain.QueryEntry{tag: entry}, viewIP))
			return
		}

		entries, _ := d.Registry.Query(id)
		writeJSON(w, http.StatusOK, disclose(entries, viewIP))
	}
}

func disclose(entries map[string]domain.QueryEntry, viewIP bool) map[string]domain.QueryEntry {
	out := make(map[string]domain.QueryEntry, len(entries))
	for tag, e := range entries {
		if !viewIP {
			e = e.WithoutAddress()
		}
		out[tag] = e
	}
	return out
}

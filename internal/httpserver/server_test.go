package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/serverlist/internal/command"
	"github.com/MrSnakeDoc/serverlist/internal/domain"
	"github.com/MrSnakeDoc/serverlist/internal/httpserver/deps"
	"github.com/MrSnakeDoc/serverlist/internal/logger"
	"github.com/MrSnakeDoc/serverlist/internal/metrics"
	"github.com/MrSnakeDoc/serverlist/internal/perms"
	"github.com/MrSnakeDoc/serverlist/internal/registry"
	"github.com/MrSnakeDoc/serverlist/internal/status"
)

func newDeps(t *testing.T) deps.Deps {
	t.Helper()
	log := logger.NewNop()

	promReg := prometheus.NewRegistry()
	reg := registry.New(registry.Options{Logger: log, Metrics: metrics.New(promReg)})

	enf, err := perms.New("", log)
	require.NoError(t, err)

	return deps.Deps{
		Logger:     log,
		StartTime:  time.Now(),
		Version:    "test",
		RateBurst:  100,
		RatePerMin: 60,
		Backend:    "file",
		Registry:   reg,
		Command:    command.NewServers(reg, enf, log, 0),
		Perms:      enf,
		Gatherer:   promReg,
	}
}

func do(t *testing.T, h http.Handler, method, path, caller, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if caller != "" {
		req.Header.Set("X-Caller", caller)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type commandReply struct {
	OK       bool     `json:"ok"`
	Messages []string `json:"messages"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestCommandEndpoint(t *testing.T) {
	d := newDeps(t)
	h := NewRouter(d.Logger, d)

	rec := do(t, h, http.MethodPost, "/servers", perms.Console,
		`{"line": "add alpha 10.0.0.5 19133 --rconpw=secret # test box"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, commandReply{OK: true, Messages: []string{"Server id alpha configured"}}, decode[commandReply](t, rec))
	assert.True(t, d.Registry.Has("alpha"))

	rec = do(t, h, http.MethodPost, "/servers", perms.Console, `{"args": ["ls"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{
		"Server connections - Page 1 of 1",
		"alpha: 10.0.0.5:19133, rcon-pw:secret, #:test box",
	}, decode[commandReply](t, rec).Messages)

	rec = do(t, h, http.MethodPost, "/servers", perms.Console, `{"args": ["frobnicate"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{command.Usage}, decode[commandReply](t, rec).Messages)

	rec = do(t, h, http.MethodPost, "/servers", "steve", `{"args": ["ls"]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{perms.DeniedMessage}, decode[commandReply](t, rec).Messages)
}

func TestCommandEndpointRejectsBadRequests(t *testing.T) {
	d := newDeps(t)
	h := NewRouter(d.Logger, d)

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/servers", "", `{"args": ["ls"]}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/servers", perms.Console, `not json`).Code)
}

func TestCommandEndpointRateLimit(t *testing.T) {
	d := newDeps(t)
	d.RateBurst = 1
	h := NewRouter(d.Logger, d)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/servers", perms.Console, `{"args": ["ls"]}`).Code)
	rec := do(t, h, http.MethodPost, "/servers", perms.Console, `{"args": ["ls"]}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/servers", "other", `{"args": ["ls"]}`).Code,
		"buckets are per caller")
}

func TestQueryEndpoint(t *testing.T) {
	d := newDeps(t)
	h := NewRouter(d.Logger, d)
	ctx := context.Background()

	require.True(t, d.Registry.Add(ctx, "alpha", domain.NewServer("10.0.0.5")))
	require.True(t, d.Registry.WriteQuery(ctx, "alpha", "ping", domain.Scalar(12)))
	require.True(t, d.Registry.WriteQuery(ctx, "alpha", "motd", domain.Structured(map[string]any{"motd": "Lobby"})))

	rec := do(t, h, http.MethodGet, "/servers/alpha/query", perms.Console, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all map[string]struct {
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Equal(t, float64(12), all["ping"].Payload["value"])
	assert.Equal(t, "Lobby", all["motd"].Payload["motd"])

	rec = do(t, h, http.MethodGet, "/servers/alpha/query?tag=ping", perms.Console, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Lobby")

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/servers/alpha/query?tag=query", perms.Console, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/servers/ghost/query", perms.Console, "").Code)
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/servers/alpha/query", "steve", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/servers/alpha/query", "", "").Code)
}

func TestQueryEndpointHidesAddressWithoutViewIP(t *testing.T) {
	d := newDeps(t)
	h := NewRouter(d.Logger, d)
	ctx := context.Background()

	require.True(t, d.Registry.Add(ctx, "alpha", domain.NewServer("10.0.0.5")))
	basic := status.Basic{MOTD: "Lobby", Players: 3, MaxPlayers: 20, HostIP: "10.0.0.5", HostPort: 19132}
	require.True(t, d.Registry.WriteQuery(ctx, "alpha", "query", domain.Structured(basic.Fields())))

	enf := d.Perms
	require.NoError(t, enf.Grant("steve", perms.Servers))
	require.NoError(t, enf.Grant("steve", perms.Read))

	type entries map[string]struct {
		Payload map[string]any `json:"payload"`
	}

	for _, path := range []string{"/servers/alpha/query", "/servers/alpha/query?tag=query"} {
		rec := do(t, h, http.MethodGet, path, "steve", "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotContains(t, rec.Body.String(), "10.0.0.5", path)

		payload := decode[entries](t, rec)["query"].Payload
		assert.Equal(t, "Lobby", payload["motd"], path)
		assert.NotContains(t, payload, domain.FieldHostIP, path)
		assert.NotContains(t, payload, domain.FieldHostPort, path)
	}

	cached, ok := d.Registry.QueryTag("alpha", "query")
	require.True(t, ok)
	ip, _ := cached.Payload.Field(domain.FieldHostIP)
	assert.Equal(t, "10.0.0.5", ip, "the cached entry keeps its fields")

	require.NoError(t, enf.Grant("steve", perms.ViewIP))
	rec := do(t, h, http.MethodGet, "/servers/alpha/query", "steve", "")
	require.Equal(t, http.StatusOK, rec.Code)
	payload := decode[entries](t, rec)["query"].Payload
	assert.Equal(t, "10.0.0.5", payload[domain.FieldHostIP])
	assert.Equal(t, float64(19132), payload[domain.FieldHostPort])
}

func TestHealthAndReadiness(t *testing.T) {
	d := newDeps(t)
	h := NewRouter(d.Logger, d)

	rec := do(t, h, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rec)["status"])

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz", "", "").Code)

	d.Ping = func(context.Context) error { return errors.New("connection refused") }
	h = NewRouter(d.Logger, d)
	rec = do(t, h, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	rec = do(t, h, http.MethodGet, "/infra", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", decode[map[string]any](t, rec)["mode"])
}

func TestAllowedCIDRs(t *testing.T) {
	d := newDeps(t)
	d.AllowedCIDRS = []string{"10.0.0.0/8"}
	h := NewRouter(d.Logger, d)

	// httptest requests come from 192.0.2.1
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/readyz", "", "").Code)
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodPost, "/servers", perms.Console, `{"args":["ls"]}`).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	d := newDeps(t)
	h := NewRouter(d.Logger, d)
	require.True(t, d.Registry.Add(context.Background(), "alpha", domain.NewServer("10.0.0.5")))

	rec := do(t, h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `serverlist_mutations_total{op="add",result="applied"} 1`)
	assert.Contains(t, rec.Body.String(), "serverlist_servers 1")
}

func TestPollEndpoint(t *testing.T) {
	d := newDeps(t)
	h := NewRouter(d.Logger, d)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/poll", "", "").Code)

	d.PollTrigger = make(chan struct{}, 1)
	h = NewRouter(d.Logger, d)
	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/poll", "", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodPost, "/poll", "", "").Code)
}

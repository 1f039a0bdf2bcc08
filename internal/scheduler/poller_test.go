package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/serverlist/internal/domain"
	"github.com/MrSnakeDoc/serverlist/internal/hooks"
	"github.com/MrSnakeDoc/serverlist/internal/logger"
	"github.com/MrSnakeDoc/serverlist/internal/registry"
	"github.com/MrSnakeDoc/serverlist/internal/status"
)

func newRegistry(t *testing.T, servers map[string]domain.Server) *registry.Registry {
	t.Helper()
	r := registry.New(registry.Options{})
	for id, srv := range servers {
		require.True(t, r.Add(context.Background(), id, srv))
	}
	return r
}

func fakeProbes(motdCalls, queryCalls *atomic.Int32) Probes {
	return Probes{
		MOTD: func(_ context.Context, host string, _ int) (status.MOTD, error) {
			motdCalls.Add(1)
			if host == "down" {
				return status.MOTD{}, errors.New("timeout")
			}
			return status.MOTD{Name: "Lobby " + host, Players: 3, Latency: 25 * time.Millisecond}, nil
		},
		Query: func(_ context.Context, host string, _ int) (status.Basic, error) {
			queryCalls.Add(1)
			if host == "down" {
				return status.Basic{}, errors.New("timeout")
			}
			return status.Basic{MOTD: "Lobby " + host, Map: "world"}, nil
		},
	}
}

func TestStatusPoller_Poll(t *testing.T) {
	noQuery := domain.NewServer("b.example")
	noQuery.QueryTask = false
	noMotd := domain.NewServer("c.example")
	noMotd.MotdTask = false

	r := newRegistry(t, map[string]domain.Server{
		"a":    domain.NewServer("a.example"),
		"b":    noQuery,
		"c":    noMotd,
		"down": domain.NewServer("down"),
	})

	var motdCalls, queryCalls atomic.Int32
	p := NewStatusPoller(r, logger.NewNop(), time.Hour, time.Second, nil).
		WithProbes(fakeProbes(&motdCalls, &queryCalls))

	// a: motd+ping+query, b: motd+ping, c: query, down: nothing
	assert.Equal(t, 6, p.Poll(context.Background()))
	assert.Equal(t, int32(3), motdCalls.Load())
	assert.Equal(t, int32(3), queryCalls.Load())

	motd, ok := r.QueryTag("a", TagMOTD)
	require.True(t, ok)
	name, _ := motd.Payload.Field("motd")
	assert.Equal(t, "Lobby a.example", name)

	ping, ok := r.QueryTag("a", TagPing)
	require.True(t, ok)
	assert.Equal(t, int64(25), ping.Payload.Value())

	_, ok = r.QueryTag("b", TagQuery)
	assert.False(t, ok)
	_, ok = r.QueryTag("c", TagMOTD)
	assert.False(t, ok)
	_, ok = r.Query("down")
	assert.False(t, ok, "failed probes write nothing")
}

func TestStatusPoller_WritesGoThroughHooks(t *testing.T) {
	r := newRegistry(t, map[string]domain.Server{"a": domain.NewServer("a.example")})
	r.Pipeline().OnUpdateQuery(func(_ context.Context, ev *hooks.UpdateQueryEvent) {
		if ev.Tag == TagPing {
			ev.Cancel()
		}
	})

	var motdCalls, queryCalls atomic.Int32
	p := NewStatusPoller(r, logger.NewNop(), time.Hour, time.Second, nil).
		WithProbes(fakeProbes(&motdCalls, &queryCalls))

	assert.Equal(t, 2, p.Poll(context.Background()))
	_, ok := r.QueryTag("a", TagPing)
	assert.False(t, ok)
}

func TestStatusPoller_ManualTrigger(t *testing.T) {
	r := newRegistry(t, map[string]domain.Server{"a": domain.NewServer("a.example")})

	var motdCalls, queryCalls atomic.Int32
	trigger := make(chan struct{})
	p := NewStatusPoller(r, logger.NewNop(), time.Hour, time.Second, trigger).
		WithProbes(fakeProbes(&motdCalls, &queryCalls))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))
	defer p.Stop()

	assert.Equal(t, int32(1), motdCalls.Load(), "first round runs on start")

	trigger <- struct{}{}
	assert.Eventually(t, func() bool { return motdCalls.Load() == 2 }, time.Second, 10*time.Millisecond)
}

package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/serverlist/internal/config"
	"github.com/MrSnakeDoc/serverlist/internal/logger"
	"github.com/MrSnakeDoc/serverlist/internal/perms"
)

type sender struct {
	out bytes.Buffer
}

func (s *sender) Name() string           { return perms.Console }
func (s *sender) SendMessage(msg string) { s.out.WriteString(msg + "\n") }

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		ListenPort:      "127.0.0.1:0",
		ShutdownTimeout: time.Second,
		Backend:         config.BackendFile,
		DataFile:        filepath.Join(t.TempDir(), "config.yml"),
		PageSize:        10,
		PollTimeout:     100 * time.Millisecond,
		RateBurst:       10,
		RatePerMin:      60,
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := New(ctx, cfg, logger.NewNop())
	require.NoError(t, err)

	s := &sender{}
	require.True(t, a.Exec(ctx, s, []string{"add", "alpha", "10.0.0.5", "--no-query-task"}))
	require.True(t, a.Exec(ctx, s, []string{"add", "beta", "10.0.0.6"}))
	assert.Contains(t, s.out.String(), "Server id beta configured")

	raw, err := os.ReadFile(cfg.DataFile)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "serverlist:")

	b, err := New(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, b.Registry().IDs())
	srv, ok := b.Registry().Get("alpha")
	require.True(t, ok)
	assert.False(t, srv.QueryTask)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewRejectsBadPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.PolicyFile = filepath.Join(t.TempDir(), "missing.csv")

	_, err := New(context.Background(), cfg, logger.NewNop())
	assert.Error(t, err)
}

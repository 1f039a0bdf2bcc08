package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/serverlist/internal/domain"
)

func TestLoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing.yaml"))

	servers, err := s.Load(context.Background(), "serverlist")
	require.NoError(t, err)
	assert.Empty(t, servers)
}

func TestLoadHandWrittenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.yaml")
	content := `---
serverlist:
  zulu:
    host: 10.0.0.9
  alpha:
    host: 10.0.0.5
    port: 19133
    rcon-port: 19134
    rcon-pw: secret
    motd-task: false
    "#": test box
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	servers, err := NewStore(path).Load(context.Background(), "serverlist")
	require.NoError(t, err)
	require.Len(t, servers, 2)

	assert.Equal(t, "zulu", servers[0].ID)
	assert.Equal(t, domain.DefaultPort, servers[0].Server.Port)

	alpha := servers[1].Server
	assert.Equal(t, "alpha", servers[1].ID)
	assert.Equal(t, 19133, alpha.Port)
	assert.Equal(t, 19134, alpha.RconPort)
	assert.Equal(t, "secret", alpha.RconPassword)
	assert.False(t, alpha.MotdTask)
	assert.True(t, alpha.QueryTask)
	assert.Equal(t, "test box", alpha.Comment)
}

func TestSaveRoundTripKeepsOrderAndOtherSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "servers.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("other:\n  keep: me\n"), 0o644))

	withComment := domain.NewServer("10.0.0.5")
	withComment.Comment = "# tricky"
	in := []domain.NamedServer{
		{ID: "zulu", Server: domain.NewServer("10.0.0.9")},
		{ID: "alpha", Server: withComment},
		{ID: "mike", Server: domain.NewServer("mc.example.net")},
	}

	s := NewStore(path)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "serverlist", in))

	out, err := s.Load(ctx, "serverlist")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "keep: me")

	// Saving again replaces the section instead of appending a second one.
	require.NoError(t, s.Save(ctx, "serverlist", in[:1]))
	out, err = s.Load(ctx, "serverlist")
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestLoadRejectsInvalidID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("serverlist:\n  \"a,b\":\n    host: x\n"), 0o644))

	_, err := NewStore(path).Load(context.Background(), "serverlist")
	assert.Error(t, err)
}

func TestLoadRejectsNonMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("serverlist: [1, 2]\n"), 0o644))

	_, err := NewStore(path).Load(context.Background(), "serverlist")
	assert.Error(t, err)
}

func TestSaveWaitsForFileLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.yaml")
	s := NewStore(path)

	other := flock.New(path + ".lock")
	require.NoError(t, other.Lock())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := s.Save(ctx, "serverlist", []domain.NamedServer{{ID: "alpha", Server: domain.NewServer("10.0.0.5")}})
	require.Error(t, err)
	assert.NoFileExists(t, path)

	require.NoError(t, other.Unlock())
	require.NoError(t, s.Save(context.Background(), "serverlist", []domain.NamedServer{{ID: "alpha", Server: domain.NewServer("10.0.0.5")}}))
	assert.FileExists(t, path)
}

func TestSaveReplacesWholeSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.yaml")
	ctx := context.Background()

	first, second := NewStore(path), NewStore(path)
	require.NoError(t, first.Save(ctx, "serverlist", []domain.NamedServer{
		{ID: "alpha", Server: domain.NewServer("10.0.0.5")},
	}))
	require.NoError(t, second.Save(ctx, "serverlist", []domain.NamedServer{
		{ID: "beta", Server: domain.NewServer("10.0.0.6")},
	}))

	got, err := first.Load(ctx, "serverlist")
	require.NoError(t, err)
	require.Len(t, got, 1, "the last writer's list wins")
	assert.Equal(t, "beta", got[0].ID)
}

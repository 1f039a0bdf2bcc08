package perms

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/serverlist/internal/logger"
)

func TestDefaultPolicies(t *testing.T) {
	e, err := New("", logger.NewNop())
	require.NoError(t, err)

	for _, perm := range []string{Servers, Read, ViewIP, ViewRcon, Write} {
		assert.True(t, e.HasPermission(Console, perm), perm)
		assert.False(t, e.HasPermission("steve", perm), perm)
	}
}

func TestPermissionsAreIndependent(t *testing.T) {
	e, err := New("", logger.NewNop())
	require.NoError(t, err)

	require.NoError(t, e.Grant("steve", Read))

	assert.True(t, e.HasPermission("steve", Read))
	assert.False(t, e.HasPermission("steve", ViewIP), "read does not imply viewip")
	assert.False(t, e.HasPermission("steve", Write))

	require.NoError(t, e.Revoke("steve", Read))
	assert.False(t, e.HasPermission("steve", Read))
}

func TestRoles(t *testing.T) {
	e, err := New("", logger.NewNop())
	require.NoError(t, err)

	require.NoError(t, e.AddRole("alex", OpRole))
	assert.True(t, e.HasPermission("alex", Write))
}

func TestPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.csv")
	policy := "p, moderators, serverlist.cmd.servers.read\n" +
		"p, moderators, serverlist.cmd.servers.read.viewip\n" +
		"g, alex, moderators\n"
	require.NoError(t, os.WriteFile(path, []byte(policy), 0o644))

	e, err := New(path, logger.NewNop())
	require.NoError(t, err)

	assert.True(t, e.HasPermission("alex", Read))
	assert.True(t, e.HasPermission("alex", ViewIP))
	assert.False(t, e.HasPermission("alex", ViewRcon))
	assert.True(t, e.HasPermission(Console, ViewRcon))
}

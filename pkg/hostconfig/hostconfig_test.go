package hostconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsEmptyConfig(t *testing.T) {
	c, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, c.GetClusterName())
}

func TestSetClusterNameThenLoadRoundTrips(t *testing.T) {
	root := t.TempDir()

	c, err := Load(root)
	require.NoError(t, err)
	require.NoError(t, c.SetClusterName("cluster1"))

	reloaded, err := Load(root)
	require.NoError(t, err)
	require.Equal(t, "cluster1", reloaded.GetClusterName())
}

func TestSetClusterNameOverwritesExisting(t *testing.T) {
	root := t.TempDir()
	c, err := Load(root)
	require.NoError(t, err)
	require.NoError(t, c.SetClusterName("first"))
	require.NoError(t, c.SetClusterName("second"))

	reloaded, err := Load(root)
	require.NoError(t, err)
	require.Equal(t, "second", reloaded.GetClusterName())
}

func TestSaveWritesAtomicallyNoLeftoverTempFiles(t *testing.T) {
	root := t.TempDir()
	c, err := Load(root)
	require.NoError(t, err)
	require.NoError(t, c.SetClusterName("cluster1"))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "sbatchman.conf", entries[0].Name())
}

func TestLoadIgnoresCommentsAndBlankLines(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "sbatchman.conf"), []byte("# comment\n\ncluster_name=cluster2\n"), 0o644))

	c, err := Load(root)
	require.NoError(t, err)
	require.Equal(t, "cluster2", c.GetClusterName())
}

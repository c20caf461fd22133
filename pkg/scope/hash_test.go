package scope

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHash_StableForEquivalentInputs(t *testing.T) {
	vars := map[string]any{"threads": 4, "name": "a"}

	h1, err := Hash("sweep", 1, vars)
	require.NoError(t, err)
	h2, err := Hash("sweep", 1, vars)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestHash_ChangesWithVariables(t *testing.T) {
	h1, err := Hash("sweep", 1, map[string]any{"threads": 4})
	require.NoError(t, err)
	h2, err := Hash("sweep", 1, map[string]any{"threads": 8})
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

func TestHash_ChangesWithConfigID(t *testing.T) {
	vars := map[string]any{"threads": 4}
	h1, err := Hash("sweep", 1, vars)
	require.NoError(t, err)
	h2, err := Hash("sweep", 2, vars)
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

func TestHash_ChangesWithJobName(t *testing.T) {
	vars := map[string]any{"threads": 4}
	h1, err := Hash("sweep-a", 1, vars)
	require.NoError(t, err)
	h2, err := Hash("sweep-b", 1, vars)
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

package expansion

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeVariableScalar(t *testing.T) {
	v, err := NormalizeVariable("x", "plain")
	require.NoError(t, err)
	require.Equal(t, KindScalar, v.Kind)
	require.Equal(t, "plain", v.Scalar)
}

func TestNormalizeVariableList(t *testing.T) {
	v, err := NormalizeVariable("x", []any{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, KindList, v.Kind)
	require.Equal(t, []any{1, 2, 3}, v.List)
}

func TestNormalizeVariableScriptExpr(t *testing.T) {
	v, err := NormalizeVariable("x", "{{ range(10) }}")
	require.NoError(t, err)
	require.Equal(t, KindScriptExpr, v.Kind)
	require.Equal(t, "range(10)", v.Expr)
}

func TestNormalizeVariableDirExpandWithGlob(t *testing.T) {
	v, err := NormalizeVariable("x", "@dir data *.csv")
	require.NoError(t, err)
	require.Equal(t, KindDirExpand, v.Kind)
	require.Equal(t, "data", v.Path)
	require.Equal(t, "*.csv", v.Glob)
}

func TestNormalizeVariableDirExpandNoGlob(t *testing.T) {
	v, err := NormalizeVariable("x", "@dir data")
	require.NoError(t, err)
	require.Equal(t, KindDirExpand, v.Kind)
	require.Equal(t, "data", v.Path)
	require.Empty(t, v.Glob)
}

func TestNormalizeVariableFileExpand(t *testing.T) {
	v, err := NormalizeVariable("x", "@file seeds.txt")
	require.NoError(t, err)
	require.Equal(t, KindFileExpand, v.Kind)
	require.Equal(t, "seeds.txt", v.Path)
}

func TestNormalizeVariableClusterMap(t *testing.T) {
	raw := map[string]any{
		"default": 1,
		"per_cluster": map[string]any{
			"gpu0": 8,
		},
	}
	v, err := NormalizeVariable("threads", raw)
	require.NoError(t, err)
	require.Equal(t, KindClusterMap, v.Kind)
	require.Equal(t, 1, v.Default)
	require.Equal(t, 8, v.PerCluster["gpu0"])
}

func TestNormalizeVariableStandardMap(t *testing.T) {
	raw := map[string]any{"fast": "-O3", "debug": "-O0"}
	v, err := NormalizeVariable("opts", raw)
	require.NoError(t, err)
	require.Equal(t, KindStandardMap, v.Kind)
	require.Equal(t, "-O3", v.Map["fast"])
}

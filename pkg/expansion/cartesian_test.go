package expansion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCartesianProductFirstAxisVariesSlowest(t *testing.T) {
	axes := []resolvedAxis{
		{name: "a", values: []any{1, 2}},
		{name: "b", values: []any{"x", "y"}},
	}
	tuples := cartesianProduct(axes, map[string]any{})
	require.Len(t, tuples, 4)

	require.Equal(t, 1, tuples[0]["a"])
	require.Equal(t, "x", tuples[0]["b"])
	require.Equal(t, 1, tuples[1]["a"])
	require.Equal(t, "y", tuples[1]["b"])
	require.Equal(t, 2, tuples[2]["a"])
	require.Equal(t, "x", tuples[2]["b"])
}

func TestListDirSortedFiltersByGlobAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.csv", "a.csv", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	entries, err := listDirSorted(dir, "*.csv")
	require.NoError(t, err)
	require.Equal(t, []any{"a.csv", "b.csv"}, entries)
}

func TestListDirSortedNoGlobReturnsEverything(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "only.txt"), []byte("x"), 0o644))

	entries, err := listDirSorted(dir, "")
	require.NoError(t, err)
	require.Equal(t, []any{"only.txt"}, entries)
}

func TestListFileLinesSkipsBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seeds.txt")
	require.NoError(t, os.WriteFile(path, []byte("1\n\n2\n3\r\n"), 0o644))

	lines, err := listFileLines(path)
	require.NoError(t, err)
	require.Equal(t, []any{"1", "2", "3"}, lines)
}

func TestResolveScopeScriptExprReturningMapErrors(t *testing.T) {
	scope := map[string]Variant{
		"v": {Kind: KindScriptExpr, Expr: "mapval"},
	}
	ctx := evalContext{evaluator: StaticEvaluator{Results: map[string]any{
		"mapval": map[string]any{"a": 1},
	}}}
	_, err := resolveScope(scope, []string{"v"}, map[string]bool{"v": true}, ctx, map[string]any{})
	require.Error(t, err)
}

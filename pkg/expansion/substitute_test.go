package expansion

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubstituteScalarAndTupleIndex(t *testing.T) {
	bindings := map[string]any{
		"seed":  42,
		"point": []any{"x", "y", "z"},
	}
	out, err := Substitute("run --seed={seed} --first={point.0}", bindings)
	require.NoError(t, err)
	require.Equal(t, "run --seed=42 --first=x", out)
}

func TestSubstituteListJoinsWithSpaces(t *testing.T) {
	bindings := map[string]any{"flags": []any{"-a", "-b", "-c"}}
	out, err := Substitute("cmd {flags}", bindings)
	require.NoError(t, err)
	require.Equal(t, "cmd -a -b -c", out)
}

func TestSubstituteMapLiteralAndVariableKey(t *testing.T) {
	bindings := map[string]any{
		"opts":    map[string]any{"fast": "-O3", "debug": "-O0"},
		"profile": "fast",
	}
	out, err := Substitute("cc {opts[fast]} {opts[$profile]}", bindings)
	require.NoError(t, err)
	require.Equal(t, "cc -O3 -O3", out)
}

func TestSubstituteUnresolvedVariableErrors(t *testing.T) {
	_, err := Substitute("run {missing}", map[string]any{})
	require.Error(t, err)
}

func TestSubstituteTupleIndexOutOfRangeErrors(t *testing.T) {
	bindings := map[string]any{"t": []any{"a"}}
	_, err := Substitute("{t.5}", bindings)
	require.Error(t, err)
}

func TestSubstituteMapDirectRejected(t *testing.T) {
	bindings := map[string]any{"opts": map[string]any{"a": 1}}
	_, err := Substitute("{opts}", bindings)
	require.Error(t, err)
}

package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWrapsCauseAndSatisfiesErrorsIs(t *testing.T) {
	cause := errors.New("boom")
	err := New(KindConfigParse, "LoadAndMerge", "job.yaml", cause)

	require.True(t, errors.Is(err, ErrConfigParse))
	require.Contains(t, err.Error(), "job.yaml")
	require.Contains(t, err.Error(), "boom")
}

func TestNewWithNilCauseUsesSentinel(t *testing.T) {
	err := New(KindStoreIO, "Open", "", nil)
	require.True(t, errors.Is(err, ErrStoreIO))
}

func TestKindOfExtractsKindThroughWrapping(t *testing.T) {
	err := New(KindSchedulerPoll, "Poll", "job-1", errors.New("timeout"))

	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, KindSchedulerPoll, kind)
}

func TestKindOfFalseForPlainError(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	require.False(t, ok)
}

func TestExitCodeMapsKindsToSpecCodes(t *testing.T) {
	require.Equal(t, 1, ExitCode(KindConfigParse))
	require.Equal(t, 1, ExitCode(KindScriptEval))
	require.Equal(t, 2, ExitCode(KindStoreIO))
	require.Equal(t, 2, ExitCode(KindConfigIO))
	require.Equal(t, 3, ExitCode(KindSchedulerSubmit))
	require.Equal(t, 4, ExitCode(KindInvariant))
}

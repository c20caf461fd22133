package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalAdapter_SubmitAndPollCompleted(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/bash\nexit 0\n"), 0o755))

	a := &LocalAdapter{}
	id, err := a.Submit(context.Background(), SubmitSpec{JobDir: dir, ScriptPath: script})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		res, err := a.Poll(context.Background(), JobRef{SchedulerJobID: id, JobDir: dir})
		return err == nil && res == PollCompleted
	}, 2*time.Second, 20*time.Millisecond)
}

func TestLocalAdapter_SubmitAndPollFailed(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/bash\nexit 7\n"), 0o755))

	a := &LocalAdapter{}
	id, err := a.Submit(context.Background(), SubmitSpec{JobDir: dir, ScriptPath: script})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		res, err := a.Poll(context.Background(), JobRef{SchedulerJobID: id, JobDir: dir})
		return err == nil && res == PollFailed
	}, 2*time.Second, 20*time.Millisecond)
}

func TestParseSlurmTimeWithoutDays(t *testing.T) {
	secs, err := parseSlurmTime("01:02:03")
	require.NoError(t, err)
	require.Equal(t, int64(3723), secs)
}

func TestParseSlurmTimeWithDays(t *testing.T) {
	secs, err := parseSlurmTime("2-00:00:00")
	require.NoError(t, err)
	require.Equal(t, int64(2*86400), secs)
}

func TestParseSlurmTimeInvalidFormatErrors(t *testing.T) {
	_, err := parseSlurmTime("not-a-time")
	require.Error(t, err)
}

func TestTimeoutFromFlagsFindsTimeEntry(t *testing.T) {
	d, err := timeoutFromFlags([]string{"--partition=batch", "--time=00:00:05"})
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, d)
}

func TestTimeoutFromFlagsNoMatchReturnsZero(t *testing.T) {
	d, err := timeoutFromFlags([]string{"--partition=batch"})
	require.NoError(t, err)
	require.Zero(t, d)
}

func TestForBuildsLocalAdapterWithTimeoutFromFlags(t *testing.T) {
	adapter, err := For("local", []string{"time=00:00:01"})
	require.NoError(t, err)
	local, ok := adapter.(*LocalAdapter)
	require.True(t, ok)
	require.Equal(t, time.Second, local.Timeout)
}

func TestSubmitIdempotent_ReturnsSentinelOnSecondCall(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/bash\nexit 0\n"), 0o755))

	a := &LocalAdapter{}
	spec := SubmitSpec{JobDir: dir, ScriptPath: script}

	id1, err := SubmitIdempotent(context.Background(), a, spec)
	require.NoError(t, err)

	id2, err := SubmitIdempotent(context.Background(), a, spec)
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

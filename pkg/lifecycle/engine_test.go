package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/3leaps/sbatchman/pkg/model"
	"github.com/3leaps/sbatchman/pkg/statedir"
	"github.com/3leaps/sbatchman/pkg/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	dir := statedir.New(t.TempDir())
	return NewEngine(s, dir, "/usr/bin/sbatchman"), s
}

func insertLocalJob(t *testing.T, ctx context.Context, s *store.Store, command string) model.Job {
	t.Helper()
	cluster, err := s.UpsertCluster(ctx, model.Cluster{ClusterName: "local0", Scheduler: model.SchedulerLocal, MaxJobs: 1})
	require.NoError(t, err)
	cfg, err := s.UpsertConfig(ctx, model.Config{ConfigName: "default", ClusterID: cluster.ID})
	require.NoError(t, err)
	job, err := s.InsertJob(ctx, model.Job{JobName: "test", ConfigID: cfg.ID, Command: command, Directory: t.TempDir()})
	require.NoError(t, err)
	return job
}

func TestAdmissionTickPromotesUnderMaxJobs(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)

	job := insertLocalJob(t, ctx, s, "exit 0")
	job, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	job.ClusterName = "local0"
	job.ConfigName = "default"
	require.NoError(t, e.Materialize(job))

	require.NoError(t, e.AdmissionTick(ctx))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusQueued, got.Status)
	require.NotEmpty(t, got.SchedulerJobID)
}

func TestMaterializeWritesRunScript(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)
	job := insertLocalJob(t, ctx, s, "echo hi")
	job, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)

	require.NoError(t, e.Materialize(job))

	scriptPath := filepath.Join(e.Dir.JobDir(job.ID), "run.sh")
	b, err := os.ReadFile(scriptPath)
	require.NoError(t, err)
	require.Contains(t, string(b), "echo hi")
	require.Contains(t, string(b), "__set-status")
}

func TestCancelVirtualQueueJob(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)
	job := insertLocalJob(t, ctx, s, "exit 0")

	require.NoError(t, e.Cancel(ctx, job.ID))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusFailed, got.Status)
}

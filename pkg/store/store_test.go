package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/3leaps/sbatchman/pkg/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertClusterCreateThenMerge(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	c, err := s.UpsertCluster(ctx, model.Cluster{ClusterName: "a", Scheduler: model.SchedulerSlurm, MaxJobs: 2})
	require.NoError(t, err)
	require.NotZero(t, c.ID)

	merged, err := s.UpsertCluster(ctx, model.Cluster{ClusterName: "a", Scheduler: model.SchedulerSlurm, MaxJobs: 5})
	require.NoError(t, err)
	require.Equal(t, c.ID, merged.ID)

	got, err := s.GetClusterByName(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 5, got.MaxJobs)
}

func TestGetConfigResolvesByClusterAndConfigName(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	cluster, err := s.UpsertCluster(ctx, model.Cluster{ClusterName: "a", Scheduler: model.SchedulerLocal, MaxJobs: 1})
	require.NoError(t, err)
	_, err = s.UpsertConfig(ctx, model.Config{ConfigName: "default", ClusterID: cluster.ID, Flags: []string{"--time=00:01:00"}, Env: []string{"X=1"}})
	require.NoError(t, err)

	got, err := s.GetConfig(ctx, "a", "default")
	require.NoError(t, err)
	require.Equal(t, []string{"--time=00:01:00"}, got.Flags)
	require.Equal(t, []string{"X=1"}, got.Env)
}

func TestGetConfigUnknownNameErrors(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.UpsertCluster(ctx, model.Cluster{ClusterName: "a", Scheduler: model.SchedulerLocal, MaxJobs: 1})
	require.NoError(t, err)

	_, err = s.GetConfig(ctx, "a", "missing")
	require.Error(t, err)
}

func TestInsertJobEntersVirtualQueue(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	cluster, err := s.UpsertCluster(ctx, model.Cluster{ClusterName: "a", Scheduler: model.SchedulerLocal, MaxJobs: 1})
	require.NoError(t, err)
	cfg, err := s.UpsertConfig(ctx, model.Config{ConfigName: "base", ClusterID: cluster.ID})
	require.NoError(t, err)

	job, err := s.InsertJob(ctx, model.Job{JobName: "j1", ConfigID: cfg.ID, Directory: "/tmp/j1", Command: "run"})
	require.NoError(t, err)
	require.Equal(t, model.StatusVirtualQueue, job.Status)

	cands, err := s.ListAdmissionCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	require.Equal(t, job.ID, cands[0].Job.ID)
}

func TestSetStatusMonotonicRank(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	cluster, err := s.UpsertCluster(ctx, model.Cluster{ClusterName: "a", Scheduler: model.SchedulerLocal})
	require.NoError(t, err)
	cfg, err := s.UpsertConfig(ctx, model.Config{ConfigName: "base", ClusterID: cluster.ID})
	require.NoError(t, err)
	job, err := s.InsertJob(ctx, model.Job{JobName: "j1", ConfigID: cfg.ID, Directory: "/tmp/j1", Command: "run"})
	require.NoError(t, err)

	require.NoError(t, s.AdmitJob(ctx, job.ID, "pid-123"))

	got, err := s.SetStatus(ctx, job.ID, model.StatusRunning, "", nil, nil)
	require.NoError(t, err)
	require.Equal(t, model.StatusRunning, got)

	// A lower-rank write (e.g. a stale "queued" callback) is a no-op.
	got, err = s.SetStatus(ctx, job.ID, model.StatusQueued, "", nil, nil)
	require.NoError(t, err)
	require.Equal(t, model.StatusRunning, got)

	got, err = s.SetStatus(ctx, job.ID, model.StatusCompleted, "", nil, nil)
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, got)
}

func TestCountActiveByClusterRespectsMaxJobs(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	cluster, err := s.UpsertCluster(ctx, model.Cluster{ClusterName: "a", Scheduler: model.SchedulerLocal, MaxJobs: 2})
	require.NoError(t, err)
	cfg, err := s.UpsertConfig(ctx, model.Config{ConfigName: "base", ClusterID: cluster.ID})
	require.NoError(t, err)

	job, err := s.InsertJob(ctx, model.Job{JobName: "j1", ConfigID: cfg.ID, Directory: "/tmp/j1", Command: "run"})
	require.NoError(t, err)
	require.NoError(t, s.AdmitJob(ctx, job.ID, "1"))

	n, err := s.CountActiveByCluster(ctx, cluster.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

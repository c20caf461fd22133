package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/3leaps/sbatchman/pkg/model"
	"github.com/3leaps/sbatchman/pkg/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedJob(t *testing.T, ctx context.Context, s *store.Store, name, clusterName string) model.Job {
	t.Helper()
	cluster, err := s.UpsertCluster(ctx, model.Cluster{ClusterName: clusterName, Scheduler: model.SchedulerLocal})
	require.NoError(t, err)
	cfg, err := s.UpsertConfig(ctx, model.Config{ConfigName: "default", ClusterID: cluster.ID})
	require.NoError(t, err)
	job, err := s.InsertJob(ctx, model.Job{JobName: name, ConfigID: cfg.ID, Command: "echo hi", Directory: "/tmp"})
	require.NoError(t, err)
	return job
}

func TestGetJobs_FiltersByNameSubstring(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedJob(t, ctx, s, "sweep-alpha", "c1")
	seedJob(t, ctx, s, "other", "c1")

	jobs, err := GetJobs(ctx, s, Filter{Name: "SWEEP"})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "sweep-alpha", jobs[0].JobName)
}

func TestGetJobs_FiltersByCluster(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedJob(t, ctx, s, "a", "cluster-a")
	seedJob(t, ctx, s, "b", "cluster-b")

	jobs, err := GetJobs(ctx, s, Filter{Cluster: "cluster-b"})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "cluster-b", jobs[0].ClusterName)
}

func TestGetJobs_OrderedBySubmitTimeThenID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedJob(t, ctx, s, "first", "c1")
	seedJob(t, ctx, s, "second", "c1")

	jobs, err := GetJobs(ctx, s, Filter{})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, "first", jobs[0].JobName)
	require.Equal(t, "second", jobs[1].JobName)
}

package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/3leaps/sbatchman/pkg/model"
	"github.com/3leaps/sbatchman/pkg/query"
	"github.com/3leaps/sbatchman/pkg/statedir"
	"github.com/3leaps/sbatchman/pkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestExportImportRoundTripPreservesJobData(t *testing.T) {
	ctx := context.Background()
	srcStore := newTestStore(t)
	srcDir := statedir.New(t.TempDir())

	cluster, err := srcStore.UpsertCluster(ctx, model.Cluster{ClusterName: "c1", Scheduler: model.SchedulerLocal, MaxJobs: 4})
	require.NoError(t, err)
	cfg, err := srcStore.UpsertConfig(ctx, model.Config{ConfigName: "default", ClusterID: cluster.ID, Flags: []string{"-p", "debug"}})
	require.NoError(t, err)
	job, err := srcStore.InsertJob(ctx, model.Job{JobName: "roundtrip", ConfigID: cfg.ID, Command: "echo hi", Directory: srcDir.JobDir(0)})
	require.NoError(t, err)

	now, err := srcStore.SetStatus(ctx, job.ID, model.StatusCompleted, "sched-1", nil, nil)
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, now)

	require.NoError(t, srcDir.Prepare(job.ID))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir.JobDir(job.ID), "stdout.log"), []byte("hi\n"), 0o644))

	var buf bytes.Buffer
	require.NoError(t, Export(ctx, srcStore, srcDir, query.Filter{}, &buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	dstStore := newTestStore(t)
	dstDir := statedir.New(t.TempDir())

	result, err := Import(ctx, dstStore, dstDir, zr)
	require.NoError(t, err)
	require.Equal(t, 1, result.JobsImported)

	imported, err := dstStore.ListNonTerminalJobs(ctx)
	require.NoError(t, err)
	require.Empty(t, imported) // completed, so terminal — not in the non-terminal list

	clusters, err := dstStore.ListClusters(ctx)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	require.Equal(t, "c1", clusters[0].ClusterName)

	stdoutPath := dstDir.StdoutPath(1)
	b, err := os.ReadFile(stdoutPath)
	require.NoError(t, err)
	require.Equal(t, "hi\n", string(b))
}

func TestImportCoercesNonTerminalStatusToFailed(t *testing.T) {
	ctx := context.Background()
	srcStore := newTestStore(t)
	srcDir := statedir.New(t.TempDir())

	cluster, err := srcStore.UpsertCluster(ctx, model.Cluster{ClusterName: "c1", Scheduler: model.SchedulerLocal})
	require.NoError(t, err)
	cfg, err := srcStore.UpsertConfig(ctx, model.Config{ConfigName: "default", ClusterID: cluster.ID})
	require.NoError(t, err)
	job, err := srcStore.InsertJob(ctx, model.Job{JobName: "inflight", ConfigID: cfg.ID, Command: "sleep 1", Directory: srcDir.JobDir(0)})
	require.NoError(t, err)
	require.NoError(t, srcDir.Prepare(job.ID))

	var buf bytes.Buffer
	require.NoError(t, Export(ctx, srcStore, srcDir, query.Filter{}, &buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	dstStore := newTestStore(t)
	dstDir := statedir.New(t.TempDir())
	_, err = Import(ctx, dstStore, dstDir, zr)
	require.NoError(t, err)

	got, err := dstStore.GetJob(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.StatusFailed, got.Status)
}

func TestManifestBundleIDIsUnique(t *testing.T) {
	a := newBundleID()
	b := newBundleID()
	require.NotEmpty(t, a)
	require.NotEqual(t, a, b)
}

package expansion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/3leaps/sbatchman/pkg/model"
)

type fakeResolver struct {
	clusters []model.Cluster
	configs  []model.Config
}

func (f *fakeResolver) ListClusters(ctx context.Context) ([]model.Cluster, error) {
	return f.clusters, nil
}

func (f *fakeResolver) GetConfigsByName(ctx context.Context, name string, clusterIDs []int64) ([]model.Config, error) {
	allowed := map[int64]bool{}
	for _, id := range clusterIDs {
		allowed[id] = true
	}
	var out []model.Config
	for _, c := range f.configs {
		if c.ConfigName != name {
			continue
		}
		if len(clusterIDs) > 0 && !allowed[c.ClusterID] {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func writeYAML(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExpandCartesianProductOverListVariable(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, "job.yaml", `
variables:
  seed: [1, 2, 3]
command: "run --seed={seed}"
jobs:
  - name: sweep
    cluster_config: default
`)

	resolver := &fakeResolver{
		clusters: []model.Cluster{{ID: 1, ClusterName: "c1", Scheduler: model.SchedulerLocal}},
		configs:  []model.Config{{ID: 10, ClusterID: 1, ConfigName: "default"}},
	}
	e := &Expander{Evaluator: NullEvaluator{}, Resolver: resolver}

	jobs, err := e.Expand(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	seen := map[string]bool{}
	for _, j := range jobs {
		require.Equal(t, "sweep", j.JobName)
		require.Equal(t, "c1", j.ClusterName)
		seen[j.Command] = true
	}
	require.True(t, seen["run --seed=1"])
	require.True(t, seen["run --seed=2"])
	require.True(t, seen["run --seed=3"])
}

func TestExpandDeduplicatesIdenticalTuples(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, "job.yaml", `
variables:
  a: [1, 1]
command: "run --a={a}"
jobs:
  - name: dup
    cluster_config: default
`)
	resolver := &fakeResolver{
		clusters: []model.Cluster{{ID: 1, ClusterName: "c1", Scheduler: model.SchedulerLocal}},
		configs:  []model.Config{{ID: 10, ClusterID: 1, ConfigName: "default"}},
	}
	e := &Expander{Evaluator: NullEvaluator{}, Resolver: resolver}

	jobs, err := e.Expand(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
}

func TestExpandUnresolvedClusterConfigErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, "job.yaml", `
command: "run"
jobs:
  - name: orphan
    cluster_config: missing
`)
	resolver := &fakeResolver{clusters: []model.Cluster{{ID: 1, ClusterName: "c1"}}}
	e := &Expander{Evaluator: NullEvaluator{}, Resolver: resolver}

	_, err := e.Expand(context.Background(), path)
	require.Error(t, err)
}

func TestExpandClusterAllowlistRestrictsByClusterName(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, "job.yaml", `
command: "run"
jobs:
  - name: scoped
    cluster_config: shared
    cluster_allowlist: [c1]
`)
	resolver := &fakeResolver{
		clusters: []model.Cluster{
			{ID: 1, ClusterName: "c1", Scheduler: model.SchedulerLocal},
			{ID: 2, ClusterName: "c2", Scheduler: model.SchedulerLocal},
		},
		configs: []model.Config{
			{ID: 10, ClusterID: 1, ConfigName: "shared"},
			{ID: 20, ClusterID: 2, ConfigName: "shared"},
		},
	}
	e := &Expander{Evaluator: NullEvaluator{}, Resolver: resolver}

	jobs, err := e.Expand(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "c1", jobs[0].ClusterName)
}

func TestExpandClusterMapPicksPerClusterValue(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, "job.yaml", `
variables:
  threads:
    default: 1
    per_cluster:
      c1: 8
command: "run -t {threads}"
jobs:
  - name: tuned
    cluster_config: default
`)
	resolver := &fakeResolver{
		clusters: []model.Cluster{{ID: 1, ClusterName: "c1", Scheduler: model.SchedulerLocal}},
		configs:  []model.Config{{ID: 10, ClusterID: 1, ConfigName: "default"}},
	}
	e := &Expander{Evaluator: NullEvaluator{}, Resolver: resolver}

	jobs, err := e.Expand(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "run -t 8", jobs[0].Command)
}

func TestExpandSubstitutesJobNameAndClusterConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, "job.yaml", `
variables:
  seed: [1, 2]
command: "run --seed={seed}"
jobs:
  - name: "sweep_{seed}"
    cluster_config: "cfg_{seed}"
`)
	resolver := &fakeResolver{
		clusters: []model.Cluster{{ID: 1, ClusterName: "c1", Scheduler: model.SchedulerLocal}},
		configs: []model.Config{
			{ID: 10, ClusterID: 1, ConfigName: "cfg_1"},
			{ID: 11, ClusterID: 1, ConfigName: "cfg_2"},
		},
	}
	e := &Expander{Evaluator: NullEvaluator{}, Resolver: resolver}

	jobs, err := e.Expand(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	byName := map[string]string{}
	for _, j := range jobs {
		byName[j.JobName] = j.ConfigName
	}
	require.Equal(t, "cfg_1", byName["sweep_1"])
	require.Equal(t, "cfg_2", byName["sweep_2"])
}

func TestExpandIncludeMergeIsRightBiased(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, "base.yaml", `
variables:
  greeting: hello
command: "echo {greeting}"
`)
	path := writeYAML(t, dir, "job.yaml", `
include: base.yaml
variables:
  greeting: override
jobs:
  - name: greet
    cluster_config: default
`)
	resolver := &fakeResolver{
		clusters: []model.Cluster{{ID: 1, ClusterName: "c1", Scheduler: model.SchedulerLocal}},
		configs:  []model.Config{{ID: 10, ClusterID: 1, ConfigName: "default"}},
	}
	e := &Expander{Evaluator: NullEvaluator{}, Resolver: resolver}

	jobs, err := e.Expand(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "echo override", jobs[0].Command)
}

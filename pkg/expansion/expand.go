// Package expansion implements the Configuration Expansion Engine (spec
// §4.1): YAML load+include, variable normalization, dependency DAG,
// cartesian expansion, substitution, and cluster binding, producing a
// deterministic, deduplicated list of concrete jobs.
package expansion

import (
	"context"
	"fmt"
	"sort"

	"github.com/3leaps/sbatchman/pkg/apperrors"
	"github.com/3leaps/sbatchman/pkg/model"
	"github.com/3leaps/sbatchman/pkg/scope"
)

// ClusterConfigResolver is the subset of the Store's read surface the
// engine needs for Phase VII cluster binding. pkg/store.Store satisfies
// this structurally.
type ClusterConfigResolver interface {
	ListClusters(ctx context.Context) ([]model.Cluster, error)
	GetConfigsByName(ctx context.Context, name string, clusterIDs []int64) ([]model.Config, error)
}

// Expander runs the full Phase I-VIII pipeline over one YAML file.
type Expander struct {
	Evaluator Evaluator
	Resolver  ClusterConfigResolver
	WorkDir   string
}

// Expand loads path, resolves includes, and produces the deduplicated Job
// list spec §4.1 Phase VIII describes. Jobs are returned without IDs or
// submit_time; the store assigns those on insert (Store.InsertJob).
func (e *Expander) Expand(ctx context.Context, path string) ([]model.Job, error) {
	doc, err := LoadAndMerge(path)
	if err != nil {
		return nil, err
	}

	clusters, err := e.Resolver.ListClusters(ctx)
	if err != nil {
		return nil, err
	}
	clusterByName := map[string]model.Cluster{}
	for _, c := range clusters {
		clusterByName[c.ClusterName] = c
	}

	var out []model.Job
	for _, js := range doc.Jobs {
		jobs, err := e.expandJob(ctx, doc, js, clusterByName)
		if err != nil {
			return nil, err
		}
		out = append(out, jobs...)
	}

	return dedupe(out), nil
}

func (e *Expander) expandJob(ctx context.Context, doc Document, js JobSpec, clusterByName map[string]model.Cluster) ([]model.Job, error) {
	// Phase IV: layered scope, global ← job-level (variant layer applied below).
	jobVars := mergeVarMaps(doc.Variables, js.Variables)
	command := firstNonEmpty(js.Command, doc.Command)
	preprocess := firstNonEmpty(js.Preprocess, doc.Preprocess)
	postprocess := firstNonEmpty(js.Postprocess, doc.Postprocess)

	variants := js.Variants
	if len(variants) == 0 {
		variants = []VariantSpec{{}}
	}

	// Candidate clusters for Phase VII binding, restricted to
	// cluster_allowlist if set (Open Question decision, DESIGN.md). Both
	// job `name` and `cluster_config` are themselves substitution-bearing
	// (spec §4.1 Phase III/VII), so the literal cluster_config name isn't
	// known until Phase VI runs per tuple — we can't pre-filter clusters
	// by config name the way an unsubstituted cluster_config would allow.
	// Instead every candidate cluster supplies cluster_name context for
	// ClusterMap resolution (Phase V), and each produced tuple's
	// substituted cluster_config name is matched against that cluster's
	// configs afterward.
	var candidates []model.Cluster
	if len(js.ClusterAllowlist) > 0 {
		for _, name := range js.ClusterAllowlist {
			if c, ok := clusterByName[name]; ok {
				candidates = append(candidates, c)
			}
		}
	} else {
		for _, c := range clusterByName {
			candidates = append(candidates, c)
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].ClusterName < candidates[j].ClusterName })
	}
	if len(candidates) == 0 {
		return nil, apperrors.New(apperrors.KindConfigUnresolved, "expandJob", js.Name, fmt.Errorf("no candidate clusters (check cluster_allowlist)"))
	}

	var jobs []model.Job
	matchedAny := false
	for _, cluster := range candidates {
		for _, variant := range variants {
			variantVars := mergeVarMaps(jobVars, variant.Variables)
			cmd := firstNonEmpty(variant.Command, command)
			pre := firstNonEmpty(variant.Preprocess, preprocess)
			post := firstNonEmpty(variant.Postprocess, postprocess)

			produced, err := e.expandScope(ctx, variantVars, cmd, pre, post, js.Name, js.ClusterConfig, cluster)
			if err != nil {
				return nil, err
			}
			for _, p := range produced {
				configs, err := e.Resolver.GetConfigsByName(ctx, p.clusterConfig, []int64{cluster.ID})
				if err != nil {
					return nil, err
				}
				for _, cfg := range configs {
					matchedAny = true
					jobs = append(jobs, model.Job{
						JobName:     p.jobName,
						ConfigID:    cfg.ID,
						Command:     p.command,
						Preprocess:  p.preprocess,
						Postprocess: p.postprocess,
						Variables:   p.variables,
						ClusterName: cluster.ClusterName,
						ConfigName:  cfg.ConfigName,
						Scheduler:   cluster.Scheduler,
					})
				}
			}
		}
	}
	if !matchedAny {
		return nil, apperrors.New(apperrors.KindConfigUnresolved, "expandJob", js.ClusterConfig, fmt.Errorf("no cluster has a config named %q", js.ClusterConfig))
	}
	return jobs, nil
}

type producedTuple struct {
	jobName       string
	clusterConfig string
	command       string
	preprocess    string
	postprocess   string
	variables     map[string]any
}

// expandScope runs Phases II, III, V, and VI for one (job, variant,
// cluster) combination. jobName and clusterConfig are substitution-bearing
// fields (spec §4.1 Phase III) resolved alongside command/preprocess/
// postprocess, so a templated `name` or `cluster_config` is fully literal
// by the time the caller matches it against stored configs (Phase VII).
func (e *Expander) expandScope(ctx context.Context, rawVars map[string]any, command, preprocess, postprocess, jobName, clusterConfig string, cluster model.Cluster) ([]producedTuple, error) {
	scope := map[string]Variant{}
	for name, raw := range rawVars {
		v, err := NormalizeVariable(name, raw)
		if err != nil {
			return nil, err
		}
		scope[name] = v
	}

	graph := NewGraph()
	fields := []string{command, preprocess, postprocess, jobName, clusterConfig}
	for _, f := range fields {
		for _, ref := range ReferencedVars(f) {
			graph.AddDependency("__fields__", ref)
		}
	}
	for name, v := range scope {
		graph.AddNode(name)
		if v.Kind == KindClusterMap {
			graph.AddDependency(name, "cluster_name")
		}
		if v.Kind == KindScriptExpr {
			for _, ref := range ReferencedVars("{{" + v.Expr + "}}") {
				graph.AddDependency(name, ref)
			}
		}
	}

	order, err := graph.TopoSort()
	if err != nil {
		return nil, err
	}

	referenced := transitiveReferenced(graph, "__fields__")

	extra := map[string]any{"cluster_name": cluster.ClusterName}
	ctxEval := evalContext{clusterName: cluster.ClusterName, evaluator: e.Evaluator, workDir: e.WorkDir}

	axes, err := resolveScope(scope, order, referenced, ctxEval, extra)
	if err != nil {
		return nil, err
	}

	tuples := cartesianProduct(axes, extra)

	var out []producedTuple
	for _, bindings := range tuples {
		cmd, err := Substitute(command, bindings)
		if err != nil {
			return nil, err
		}
		pre, err := Substitute(preprocess, bindings)
		if err != nil {
			return nil, err
		}
		post, err := Substitute(postprocess, bindings)
		if err != nil {
			return nil, err
		}
		name, err := Substitute(jobName, bindings)
		if err != nil {
			return nil, err
		}
		cfgName, err := Substitute(clusterConfig, bindings)
		if err != nil {
			return nil, err
		}
		delete(bindings, "cluster_name")
		out = append(out, producedTuple{
			jobName:       name,
			clusterConfig: cfgName,
			command:       cmd,
			preprocess:    pre,
			postprocess:   post,
			variables:     bindings,
		})
	}
	return out, nil
}

func transitiveReferenced(g *Graph, root string) map[string]bool {
	visited := map[string]bool{}
	var visit func(n string)
	visit = func(n string) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, dep := range g.edges[n] {
			visit(dep)
		}
	}
	visit(root)
	delete(visited, root)
	return visited
}

func mergeVarMaps(outer, inner map[string]any) map[string]any {
	out := make(map[string]any, len(outer)+len(inner))
	for k, v := range outer {
		out[k] = v
	}
	for k, v := range inner {
		out[k] = v
	}
	return out
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// dedupe implements Phase VIII: "deduplicated by (job_name, config_id,
// variables)", grounded on pkg/scope/hash.go's canonical-hash pattern.
func dedupe(jobs []model.Job) []model.Job {
	seen := map[string]bool{}
	out := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		key, err := scope.Hash(j.JobName, j.ConfigID, j.Variables)
		if err != nil {
			// Fall back to keeping the job rather than dropping it on a
			// hashing failure; determinism of ordering is unaffected.
			out = append(out, j)
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, j)
	}
	return out
}

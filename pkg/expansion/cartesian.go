package expansion

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/3leaps/sbatchman/pkg/apperrors"
)

// resolvedAxis is a List-shaped variable ready to be multiplied into the
// cartesian product (spec §4.1 Phase V).
type resolvedAxis struct {
	name   string
	values []any
}

// evalContext carries everything axis resolution needs beyond the raw
// Variant map: the cluster a job instance targets (for ClusterMap) and the
// expression evaluator (for ScriptExpr).
type evalContext struct {
	clusterName string
	evaluator   Evaluator
	workDir     string
}

// resolveScope evaluates every variable in scope, in dependency order,
// splitting them into fixed bindings (scalars, maps, ClusterMap picks,
// non-axis ScriptExpr results) and axes (Lists, DirExpand, FileExpand,
// list-valued ScriptExpr) — spec §4.1 Phase II/V.
//
// Only variables in `referenced` are resolved; everything else is a dead
// variable and is skipped entirely (dead-axis pruning, Phase V).
func resolveScope(scope map[string]Variant, order []string, referenced map[string]bool, ctx evalContext, bindings map[string]any) ([]resolvedAxis, error) {
	var axes []resolvedAxis

	for _, name := range order {
		if !referenced[name] {
			continue
		}
		v, ok := scope[name]
		if !ok {
			continue
		}

		switch v.Kind {
		case KindScalar:
			bindings[name] = v.Scalar

		case KindList:
			axes = append(axes, resolvedAxis{name: name, values: v.List})

		case KindStandardMap:
			bindings[name] = v.Map

		case KindClusterMap:
			val := v.Default
			if v.PerCluster != nil {
				if pc, ok := v.PerCluster[ctx.clusterName]; ok {
					val = pc
				}
			}
			bindings[name] = val

		case KindDirExpand:
			entries, err := listDirSorted(resolvePath(ctx.workDir, v.Path), v.Glob)
			if err != nil {
				return nil, apperrors.New(apperrors.KindConfigIO, "resolveScope", v.Path, err)
			}
			axes = append(axes, resolvedAxis{name: name, values: entries})

		case KindFileExpand:
			lines, err := listFileLines(resolvePath(ctx.workDir, v.Path))
			if err != nil {
				return nil, apperrors.New(apperrors.KindConfigIO, "resolveScope", v.Path, err)
			}
			axes = append(axes, resolvedAxis{name: name, values: lines})

		case KindScriptExpr:
			result, err := ctx.evaluator.Evaluate("", v.Expr, bindings)
			if err != nil {
				return nil, err
			}
			switch rv := result.(type) {
			case []any:
				axes = append(axes, resolvedAxis{name: name, values: rv})
			case map[string]any:
				return nil, apperrors.New(apperrors.KindScriptEval, "resolveScope", name, fmt.Errorf("script expression returned a map, which is not legal here (see DESIGN.md decision)"))
			default:
				bindings[name] = rv
			}
		}
	}

	sort.Slice(axes, func(i, j int) bool { return axes[i].name < axes[j].name })
	return axes, nil
}

// cartesianProduct expands axes (ordered, first axis varies slowest — spec
// §8 scenario 2) into one bindings map per tuple, merged over base.
func cartesianProduct(axes []resolvedAxis, base map[string]any) []map[string]any {
	tuples := []map[string]any{cloneMap(base)}
	for _, axis := range axes {
		var next []map[string]any
		for _, t := range tuples {
			for _, val := range axis.values {
				nt := cloneMap(t)
				nt[axis.name] = val
				next = append(next, nt)
			}
		}
		tuples = next
	}
	return tuples
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func resolvePath(workDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workDir, p)
}

// listDirSorted lists filenames directly under path, sorted lexicographically
// (spec §4.1 Phase II DirExpand). When glob is non-empty, only names matching
// it (doublestar syntax) are kept.
func listDirSorted(path, glob string) ([]any, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if glob != "" {
			ok, err := doublestar.Match(glob, e.Name())
			if err != nil {
				return nil, fmt.Errorf("invalid glob %q: %w", glob, err)
			}
			if !ok {
				continue
			}
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out, nil
}

func listFileLines(path string) ([]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []any
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}

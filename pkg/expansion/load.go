package expansion

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/3leaps/sbatchman/pkg/apperrors"
	"gopkg.in/yaml.v3"
)

// Document is the raw decoded form of one YAML file, before variable
// normalization (spec §4.1 Phase I).
type Document struct {
	Include     any            `yaml:"include,omitempty"`
	Variables   map[string]any `yaml:"variables,omitempty"`
	Python      *PythonBlock   `yaml:"python,omitempty"`
	Command     string         `yaml:"command,omitempty"`
	Preprocess  string         `yaml:"preprocess,omitempty"`
	Postprocess string         `yaml:"postprocess,omitempty"`
	Jobs        []JobSpec      `yaml:"jobs,omitempty"`
	Clusters    map[string]any `yaml:"clusters,omitempty"`
}

// PythonBlock holds the evaluator header source referenced by spec §4.1's
// "embedded expression evaluator" contract.
type PythonBlock struct {
	Header string `yaml:"header,omitempty"`
}

// JobSpec is one entry of the top-level `jobs:` list, prior to expansion.
type JobSpec struct {
	Name             string         `yaml:"name"`
	ClusterConfig    string         `yaml:"cluster_config"`
	ClusterAllowlist []string       `yaml:"cluster_allowlist,omitempty"`
	Variables        map[string]any `yaml:"variables,omitempty"`
	Command          string         `yaml:"command,omitempty"`
	Preprocess       string         `yaml:"preprocess,omitempty"`
	Postprocess      string         `yaml:"postprocess,omitempty"`
	Variants         []VariantSpec  `yaml:"variants,omitempty"`
}

// VariantSpec is one entry of a job's `variants:` list.
type VariantSpec struct {
	Variables   map[string]any `yaml:"variables,omitempty"`
	Command     string         `yaml:"command,omitempty"`
	Preprocess  string         `yaml:"preprocess,omitempty"`
	Postprocess string         `yaml:"postprocess,omitempty"`
}

// LoadAndMerge implements Phase I: parse the root YAML file, resolve
// `include:` directives (single path or sequence), and merge the included
// documents under the root document (spec §4.1 Phase I, Law "Include merge
// is right-biased"): the root wins per `variables`/`clusters` key and per
// scalar field, while `jobs` lists are concatenated, included jobs first.
func LoadAndMerge(rootPath string) (Document, error) {
	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return Document{}, apperrors.New(apperrors.KindConfigIO, "LoadAndMerge", rootPath, err)
	}
	visited := map[string]bool{}
	return loadRecursive(absRoot, visited)
}

func loadRecursive(path string, visited map[string]bool) (Document, error) {
	canon, err := filepath.EvalSymlinks(path)
	if err != nil {
		canon = path
	}
	if visited[canon] {
		return Document{}, apperrors.New(apperrors.KindConfigCycle, "LoadAndMerge", path, fmt.Errorf("circular include"))
	}
	visited[canon] = true

	doc, err := loadOne(path)
	if err != nil {
		return Document{}, err
	}

	includePaths, err := resolveIncludePaths(doc.Include, path)
	if err != nil {
		return Document{}, err
	}

	merged := Document{}
	for _, inc := range includePaths {
		// Nested includes recurse with a copy of visited so sibling
		// includes don't falsely collide with each other, only with their
		// own ancestry.
		childVisited := make(map[string]bool, len(visited))
		for k := range visited {
			childVisited[k] = true
		}
		incDoc, err := loadRecursive(inc, childVisited)
		if err != nil {
			return Document{}, err
		}
		merged = mergeDocuments(merged, incDoc)
	}
	merged = mergeDocuments(merged, doc)
	return merged, nil
}

func loadOne(path string) (Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Document{}, apperrors.New(apperrors.KindConfigIO, "loadOne", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return Document{}, apperrors.New(apperrors.KindConfigParse, "loadOne", path, err)
	}
	return doc, nil
}

func resolveIncludePaths(raw any, fromFile string) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	base := filepath.Dir(fromFile)
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	switch v := raw.(type) {
	case string:
		return []string{resolve(v)}, nil
	case []any:
		var out []string
		for _, it := range v {
			s, ok := it.(string)
			if !ok {
				return nil, apperrors.New(apperrors.KindConfigParse, "resolveIncludePaths", fromFile, fmt.Errorf("include sequence entries must be strings"))
			}
			out = append(out, resolve(s))
		}
		return out, nil
	default:
		return nil, apperrors.New(apperrors.KindConfigParse, "resolveIncludePaths", fromFile, fmt.Errorf("include must be a string or sequence of strings"))
	}
}

// mergeDocuments merges base (included, processed first) with override
// (the including document), override winning per variables/clusters key and
// per scalar field; Jobs are concatenated, base first.
func mergeDocuments(base, override Document) Document {
	out := base

	if override.Variables != nil {
		if out.Variables == nil {
			out.Variables = map[string]any{}
		}
		for k, v := range override.Variables {
			out.Variables[k] = v
		}
	}
	if override.Python != nil {
		out.Python = override.Python
	}
	if override.Command != "" {
		out.Command = override.Command
	}
	if override.Preprocess != "" {
		out.Preprocess = override.Preprocess
	}
	if override.Postprocess != "" {
		out.Postprocess = override.Postprocess
	}
	if len(override.Jobs) > 0 {
		out.Jobs = append(out.Jobs, override.Jobs...)
	}
	if override.Clusters != nil {
		if out.Clusters == nil {
			out.Clusters = map[string]any{}
		}
		for k, v := range override.Clusters {
			out.Clusters[k] = v
		}
	}
	return out
}

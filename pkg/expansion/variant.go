package expansion

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/3leaps/sbatchman/pkg/apperrors"
)

// VariantKind is the closed sum type spec §4.1 Phase II and §9
// ("Dynamic YAML shapes → tagged variants") describe.
type VariantKind string

const (
	KindScalar      VariantKind = "scalar"
	KindList        VariantKind = "list"
	KindStandardMap VariantKind = "standard_map"
	KindClusterMap  VariantKind = "cluster_map"
	KindDirExpand   VariantKind = "dir_expand"
	KindFileExpand  VariantKind = "file_expand"
	KindScriptExpr  VariantKind = "script_expr"
)

// Variant is a normalized `variables:` entry.
type Variant struct {
	Kind VariantKind

	Scalar any
	List   []any
	Map    map[string]any

	// ClusterMap fields.
	Default    any
	PerCluster map[string]any

	// DirExpand/FileExpand source path, relative to the invocation cwd
	// until resolved.
	Path string

	// Glob optionally filters DirExpand entries (doublestar syntax,
	// e.g. "*.csv"); empty means no filtering. Not meaningful for
	// FileExpand, which has no notion of matchable names.
	Glob string

	// ScriptExpr source text (the content between {{ and }}).
	Expr string
}

var scriptExprPattern = regexp.MustCompile(`^\{\{\s*(.*?)\s*\}\}$`)

// NormalizeVariable classifies a raw decoded YAML value into a Variant
// (spec §4.1 Phase II).
func NormalizeVariable(name string, raw any) (Variant, error) {
	switch v := raw.(type) {
	case string:
		if m := scriptExprPattern.FindStringSubmatch(strings.TrimSpace(v)); m != nil {
			return Variant{Kind: KindScriptExpr, Expr: m[1]}, nil
		}
		if rest, ok := stripDirective(v, "@dir "); ok {
			path, glob := splitPathAndGlob(rest)
			return Variant{Kind: KindDirExpand, Path: path, Glob: glob}, nil
		}
		if rest, ok := stripDirective(v, "@file "); ok {
			return Variant{Kind: KindFileExpand, Path: rest}, nil
		}
		return Variant{Kind: KindScalar, Scalar: v}, nil

	case []any:
		return Variant{Kind: KindList, List: v}, nil

	case map[string]any:
		if _, hasDefault := v["default"]; hasDefault {
			return clusterMapVariant(v)
		}
		if _, hasPerCluster := v["per_cluster"]; hasPerCluster {
			return clusterMapVariant(v)
		}
		return Variant{Kind: KindStandardMap, Map: v}, nil

	case map[any]any:
		converted := make(map[string]any, len(v))
		for k, val := range v {
			converted[fmt.Sprint(k)] = val
		}
		return NormalizeVariable(name, converted)

	case nil:
		return Variant{Kind: KindScalar, Scalar: nil}, nil

	default:
		// bool, int, float64, etc.
		return Variant{Kind: KindScalar, Scalar: v}, nil
	}
}

// clusterMapShape mirrors the `{default: ..., per_cluster: {...}}` YAML
// shape; mapstructure decodes it so oddly-typed YAML (e.g. a per_cluster
// value that came through as map[any]any) still lands in PerCluster.
type clusterMapShape struct {
	Default    any            `mapstructure:"default"`
	PerCluster map[string]any `mapstructure:"per_cluster"`
}

func clusterMapVariant(v map[string]any) (Variant, error) {
	var shape clusterMapShape
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &shape,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Variant{}, apperrors.New(apperrors.KindConfigParse, "clusterMapVariant", "", err)
	}
	if err := dec.Decode(v); err != nil {
		return Variant{}, apperrors.New(apperrors.KindConfigParse, "clusterMapVariant", "", fmt.Errorf("per_cluster must be a mapping: %w", err))
	}
	return Variant{Kind: KindClusterMap, Default: shape.Default, PerCluster: shape.PerCluster}, nil
}

func stripDirective(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return strings.TrimSpace(strings.TrimPrefix(s, prefix)), true
	}
	return "", false
}

// splitPathAndGlob splits "PATH [GLOB]" into its directory and an optional
// trailing glob filter, e.g. "@dir data *.csv" -> ("data", "*.csv").
func splitPathAndGlob(rest string) (path, glob string) {
	fields := strings.Fields(rest)
	if len(fields) == 2 {
		return fields[0], fields[1]
	}
	return rest, ""
}

package expansion

import (
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"

	"github.com/3leaps/sbatchman/pkg/apperrors"
	"github.com/3leaps/sbatchman/pkg/model"
)

// ClusterConfigSpec is one cluster entry of the top-level `clusters:` map
// (spec §3 "Created by cluster-config import", §4.1 Phase I), decoded into
// the Cluster/Config rows import_cluster_configs_from_file persists.
//
// YAML shape (keyed by cluster name, mirroring `variables:`/`clusters:`
// elsewhere in this format):
//
//	clusters:
//	  cluster1:
//	    scheduler: slurm
//	    max_jobs: 10
//	    configs:
//	      default:
//	        flags: ["--partition=batch"]
//	        env: ["OMP_NUM_THREADS=4"]
type ClusterConfigSpec struct {
	ClusterName string
	Scheduler   model.Scheduler
	MaxJobs     int
	Configs     []ConfigSpec
}

// ConfigSpec is one entry of a cluster's `configs:` map.
type ConfigSpec struct {
	ConfigName string
	Flags      []string
	Env        []string
}

type clusterEntryShape struct {
	Scheduler string                      `mapstructure:"scheduler"`
	MaxJobs   int                         `mapstructure:"max_jobs"`
	Configs   map[string]configEntryShape `mapstructure:"configs"`
}

type configEntryShape struct {
	Flags []string `mapstructure:"flags"`
	Env   []string `mapstructure:"env"`
}

// ParseClusterConfigs decodes doc.Clusters (already include-merged by
// LoadAndMerge) into a deterministic-ordered list of ClusterConfigSpec.
// This is the decoding step of the library surface's
// import_cluster_configs_from_file (spec §6); get_cluster_config is served
// by store.GetConfig instead. It is store-independent by
// design (mirrors pkg/expansion's existing avoidance of a concrete
// pkg/store import) — the caller persists via UpsertCluster/UpsertConfig.
func ParseClusterConfigs(doc Document) ([]ClusterConfigSpec, error) {
	names := make([]string, 0, len(doc.Clusters))
	for name := range doc.Clusters {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ClusterConfigSpec, 0, len(names))
	for _, name := range names {
		var shape clusterEntryShape
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &shape,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, apperrors.New(apperrors.KindConfigParse, "ParseClusterConfigs", name, err)
		}
		if err := dec.Decode(doc.Clusters[name]); err != nil {
			return nil, apperrors.New(apperrors.KindConfigParse, "ParseClusterConfigs", name, fmt.Errorf("invalid cluster entry: %w", err))
		}
		if shape.Scheduler == "" {
			return nil, apperrors.New(apperrors.KindConfigParse, "ParseClusterConfigs", name, fmt.Errorf("cluster %q missing scheduler", name))
		}

		configNames := make([]string, 0, len(shape.Configs))
		for cn := range shape.Configs {
			configNames = append(configNames, cn)
		}
		sort.Strings(configNames)

		spec := ClusterConfigSpec{
			ClusterName: name,
			Scheduler:   model.Scheduler(shape.Scheduler),
			MaxJobs:     shape.MaxJobs,
		}
		for _, cn := range configNames {
			cfg := shape.Configs[cn]
			spec.Configs = append(spec.Configs, ConfigSpec{ConfigName: cn, Flags: cfg.Flags, Env: cfg.Env})
		}
		out = append(out, spec)
	}
	return out, nil
}

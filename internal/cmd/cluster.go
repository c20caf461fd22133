package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/3leaps/sbatchman/pkg/apperrors"
	"github.com/3leaps/sbatchman/pkg/expansion"
	"github.com/3leaps/sbatchman/pkg/model"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage clusters",
}

var (
	clusterScheduler string
	clusterMaxJobs   int
)

var clusterAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create or update a cluster",
	Args:  cobra.ExactArgs(1),
	RunE:  runClusterAdd,
}

var clusterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clusters",
	Args:  cobra.NoArgs,
	RunE:  runClusterList,
}

var clusterImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import clusters and configs from a YAML file's clusters: block",
	Args:  cobra.ExactArgs(1),
	RunE:  runClusterImport,
}

func init() {
	rootCmd.AddCommand(clusterCmd)
	clusterCmd.AddCommand(clusterAddCmd)
	clusterCmd.AddCommand(clusterListCmd)
	clusterCmd.AddCommand(clusterImportCmd)

	clusterAddCmd.Flags().StringVar(&clusterScheduler, "scheduler", "", "scheduler: slurm, pbs, or local (required)")
	clusterAddCmd.Flags().IntVar(&clusterMaxJobs, "max-jobs", 0, "maximum concurrently admitted jobs (0 = unlimited)")
	_ = clusterAddCmd.MarkFlagRequired("scheduler")
}

func runClusterAdd(cmd *cobra.Command, args []string) error {
	sched := model.Scheduler(clusterScheduler)
	switch sched {
	case model.SchedulerSlurm, model.SchedulerPBS, model.SchedulerLocal:
	default:
		return apperrors.New(apperrors.KindConfigKey, "cluster add", clusterScheduler, fmt.Errorf("unknown scheduler %q", clusterScheduler))
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.store.UpsertCluster(ctx, model.Cluster{ClusterName: args[0], Scheduler: sched, MaxJobs: clusterMaxJobs})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cluster %q (id=%d, scheduler=%s, max_jobs=%d)\n", c.ClusterName, c.ID, c.Scheduler, c.MaxJobs)
	return nil
}

// runClusterImport implements the library surface's
// import_cluster_configs_from_file (spec §6): parse a YAML file's
// top-level `clusters:` block, then persist every cluster/config via the
// same Upsert path the add/config-add commands use.
func runClusterImport(cmd *cobra.Command, args []string) error {
	doc, err := expansion.LoadAndMerge(args[0])
	if err != nil {
		return err
	}
	specs, err := expansion.ParseClusterConfigs(doc)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	clusterCount, configCount := 0, 0
	for _, spec := range specs {
		c, err := a.store.UpsertCluster(ctx, model.Cluster{
			ClusterName: spec.ClusterName,
			Scheduler:   spec.Scheduler,
			MaxJobs:     spec.MaxJobs,
		})
		if err != nil {
			return err
		}
		clusterCount++
		for _, cfg := range spec.Configs {
			if _, err := a.store.UpsertConfig(ctx, model.Config{
				ConfigName: cfg.ConfigName,
				ClusterID:  c.ID,
				Flags:      cfg.Flags,
				Env:        cfg.Env,
			}); err != nil {
				return err
			}
			configCount++
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d cluster(s), %d config(s)\n", clusterCount, configCount)
	return nil
}

func runClusterList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	clusters, err := a.store.ListClusters(ctx)
	if err != nil {
		return err
	}
	for _, c := range clusters {
		fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-8s max_jobs=%d\n", c.ClusterName, c.Scheduler, c.MaxJobs)
	}
	return nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/3leaps/sbatchman/pkg/expansion"
)

var runCmd = &cobra.Command{
	Use:   "run <config.yaml>",
	Short: "Expand a job configuration and enqueue the resulting jobs",
	Long: `Run loads a job configuration file, runs the full expansion pipeline
(variable normalization, dependency resolution, cartesian expansion,
substitution, cluster binding, and deduplication), and inserts each
resulting job into the virtual queue for admission.

Example:
  sbatchman run sweep.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	expander := &expansion.Expander{
		Evaluator: expansion.NullEvaluator{},
		Resolver:  a.store,
		WorkDir:   ".",
	}

	jobs, err := expander.Expand(ctx, args[0])
	if err != nil {
		return err
	}

	for _, j := range jobs {
		inserted, err := a.store.InsertJob(ctx, j)
		if err != nil {
			return err
		}
		inserted.Directory = a.dir.JobDir(inserted.ID)
		if err := a.engine.Materialize(inserted); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "queued job %d (%s) on %s/%s\n", inserted.ID, inserted.JobName, inserted.ClusterName, inserted.ConfigName)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d job(s) enqueued\n", len(jobs))
	return nil
}

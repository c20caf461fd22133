package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/3leaps/sbatchman/pkg/model"
	"github.com/3leaps/sbatchman/pkg/output"
	"github.com/3leaps/sbatchman/pkg/query"
)

var (
	listName     string
	listStatus   string
	listCluster  string
	listConfig   string
	listJSON     bool
	listSince    string
	listUntil    string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Query jobs (spec §4.6 filters)",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listName, "name", "", "substring match on job name")
	listCmd.Flags().StringVar(&listStatus, "status", "", "exact status: virtualqueue, queued, running, completed, failed")
	listCmd.Flags().StringVar(&listCluster, "cluster", "", "exact cluster name")
	listCmd.Flags().StringVar(&listConfig, "config", "", "exact config name")
	listCmd.Flags().StringVar(&listSince, "since", "", "submit_time lower bound, RFC3339")
	listCmd.Flags().StringVar(&listUntil, "until", "", "submit_time upper bound, RFC3339")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "emit JSONL instead of a table")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	f := query.Filter{
		Name:    listName,
		Status:  model.Status(listStatus),
		Cluster: listCluster,
		Config:  listConfig,
	}
	if listSince != "" {
		t, err := time.Parse(time.RFC3339, listSince)
		if err != nil {
			return fmt.Errorf("--since: %w", err)
		}
		f.SubmitTimeRange.Lo = t
	}
	if listUntil != "" {
		t, err := time.Parse(time.RFC3339, listUntil)
		if err != nil {
			return fmt.Errorf("--until: %w", err)
		}
		f.SubmitTimeRange.Hi = t
	}

	jobs, err := query.GetJobs(ctx, a.store, f)
	if err != nil {
		return err
	}

	if listJSON {
		w := output.NewJSONLWriter(cmd.OutOrStdout())
		for _, j := range jobs {
			if err := w.WriteJob(ctx, j); err != nil {
				return err
			}
		}
		return w.WriteSummary(ctx, output.SummaryRecord{Count: len(jobs)})
	}

	for _, j := range jobs {
		fmt.Fprintf(cmd.OutOrStdout(), "%-6d %-20s %-10s %-10s %s\n", j.ID, j.JobName, j.ClusterName, j.Status, j.SubmitTime.Format(time.RFC3339))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d job(s)\n", len(jobs))
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/3leaps/sbatchman/pkg/lifecycle"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the admission and polling loop until interrupted",
	Long: `Daemon drives AdmissionTick and PollTick on an interval (spec §4.4
Admission, Polling), recovering from a lost database on startup (spec §4.4
Recovery). Runs until SIGINT/SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	a.engine.MaxUnknownTicks = viper.GetInt("lifecycle.max_unknown_ticks")
	interval := viper.GetDuration("lifecycle.poll_interval")
	if interval <= 0 {
		interval = lifecycle.DefaultPollInterval
	}

	if err := a.engine.Recover(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sbatchman daemon: polling every %s (root=%s)\n", interval, a.root)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(cmd.OutOrStdout(), "sbatchman daemon: shutting down")
			return nil
		case <-ticker.C:
			if err := tick(ctx, a); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "sbatchman daemon:", err)
			}
		}
	}
}

func tick(ctx context.Context, a *app) error {
	if err := a.engine.AdmissionTick(ctx); err != nil {
		return err
	}
	return a.engine.PollTick(ctx)
}

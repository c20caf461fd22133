package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/3leaps/sbatchman/pkg/apperrors"
	"github.com/3leaps/sbatchman/pkg/model"
)

// setStatusCmd is invoked only by the run.sh scripts pkg/lifecycle/script.go
// generates, never directly by an operator (spec §4.4 "Generated run
// script"). It is hidden from --help for that reason.
var setStatusCmd = &cobra.Command{
	Use:    "__set-status <job-id> <status> [exit-code]",
	Hidden: true,
	Args:   cobra.RangeArgs(2, 3),
	RunE:   runSetStatus,
}

func init() {
	rootCmd.AddCommand(setStatusCmd)
}

func runSetStatus(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return apperrors.New(apperrors.KindInvariant, "__set-status", args[0], fmt.Errorf("invalid job id: %w", err))
	}

	var target model.Status
	switch args[1] {
	case "running":
		target = model.StatusRunning
	case "completed":
		target = model.StatusCompleted
	case "failed":
		target = model.StatusFailed
	default:
		return apperrors.New(apperrors.KindInvariant, "__set-status", args[1], fmt.Errorf("unknown status %q", args[1]))
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	now := time.Now().UTC()
	var startTime, endTime *time.Time
	switch target {
	case model.StatusRunning:
		startTime = &now
	case model.StatusCompleted, model.StatusFailed:
		endTime = &now
	}

	_, err = a.store.SetStatus(ctx, id, target, "", startTime, endTime)
	return err
}

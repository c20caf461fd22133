package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/3leaps/sbatchman/pkg/apperrors"
)

// SlurmAdapter submits through sbatch/squeue/scancel.
type SlurmAdapter struct{}

var sbatchJobIDPattern = regexp.MustCompile(`Submitted batch job (\d+)`)

func (a *SlurmAdapter) Submit(ctx context.Context, spec SubmitSpec) (string, error) {
	ctx, cancel := withCallTimeout(ctx)
	defer cancel()

	args := append(append([]string{}, spec.Flags...), spec.ScriptPath)
	cmd := exec.CommandContext(ctx, "sbatch", args...)
	cmd.Dir = spec.JobDir
	cmd.Env = envWithExtra(spec.Env)

	var out bytes.Buffer
	cmd.Stdout = &out
	var errOut bytes.Buffer
	cmd.Stderr = &errOut

	if err := cmd.Run(); err != nil {
		return "", apperrors.New(apperrors.KindSchedulerSubmit, "sbatch", spec.JobDir, fmt.Errorf("%v: %s", err, errOut.String()))
	}
	m := sbatchJobIDPattern.FindStringSubmatch(out.String())
	if m == nil {
		return "", apperrors.New(apperrors.KindSchedulerSubmit, "sbatch", spec.JobDir, fmt.Errorf("could not parse job id from %q", out.String()))
	}
	return m[1], nil
}

func (a *SlurmAdapter) Poll(ctx context.Context, ref JobRef) (PollResult, error) {
	ctx, cancel := withCallTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, "squeue", "-j", ref.SchedulerJobID, "-h", "-o", "%T")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return PollUnknown, nil
		}
		// squeue exits nonzero or prints nothing once a job leaves the
		// queue; that alone doesn't tell us completed vs failed, so we
		// report unknown and let the run-script's own status callback
		// settle it (the lifecycle engine fails the job after
		// MaxUnknownTicks consecutive unknown polls).
		return PollUnknown, nil
	}
	state := strings.TrimSpace(out.String())
	if state == "" {
		return PollUnknown, nil
	}
	return mapSlurmState(state), nil
}

func mapSlurmState(state string) PollResult {
	switch state {
	case "PENDING", "CONFIGURING":
		return PollPending
	case "RUNNING", "COMPLETING", "SUSPENDED":
		return PollRunning
	case "COMPLETED":
		return PollCompleted
	case "FAILED", "CANCELLED", "TIMEOUT", "NODE_FAIL", "OUT_OF_MEMORY", "BOOT_FAIL", "DEADLINE":
		return PollFailed
	default:
		return PollUnknown
	}
}

func (a *SlurmAdapter) Cancel(ctx context.Context, ref JobRef) error {
	ctx, cancel := withCallTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, "scancel", ref.SchedulerJobID)
	var errOut bytes.Buffer
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return apperrors.New(apperrors.KindSchedulerCancel, "scancel", ref.SchedulerJobID, fmt.Errorf("%v: %s", err, errOut.String()))
	}
	return nil
}

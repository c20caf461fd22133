package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/3leaps/sbatchman/pkg/apperrors"
)

// PBSAdapter submits through qsub/qstat/qdel.
type PBSAdapter struct{}

func (a *PBSAdapter) Submit(ctx context.Context, spec SubmitSpec) (string, error) {
	ctx, cancel := withCallTimeout(ctx)
	defer cancel()

	args := append(append([]string{}, spec.Flags...), spec.ScriptPath)
	cmd := exec.CommandContext(ctx, "qsub", args...)
	cmd.Dir = spec.JobDir
	cmd.Env = envWithExtra(spec.Env)

	var out bytes.Buffer
	cmd.Stdout = &out
	var errOut bytes.Buffer
	cmd.Stderr = &errOut

	if err := cmd.Run(); err != nil {
		return "", apperrors.New(apperrors.KindSchedulerSubmit, "qsub", spec.JobDir, fmt.Errorf("%v: %s", err, errOut.String()))
	}
	id := strings.TrimSpace(out.String())
	if id == "" {
		return "", apperrors.New(apperrors.KindSchedulerSubmit, "qsub", spec.JobDir, fmt.Errorf("qsub printed no job id"))
	}
	return id, nil
}

func (a *PBSAdapter) Poll(ctx context.Context, ref JobRef) (PollResult, error) {
	ctx, cancel := withCallTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, "qstat", "-f", "-x", ref.SchedulerJobID)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return PollUnknown, nil
		}
		return PollUnknown, nil
	}
	return mapPBSOutput(out.String()), nil
}

func mapPBSOutput(out string) PollResult {
	idx := strings.Index(out, "job_state = ")
	if idx < 0 {
		return PollUnknown
	}
	rest := out[idx+len("job_state = "):]
	if len(rest) == 0 {
		return PollUnknown
	}
	switch rest[0] {
	case 'Q', 'H', 'W', 'T':
		return PollPending
	case 'R', 'E', 'S':
		return PollRunning
	case 'F', 'C':
		if strings.Contains(out, "exit_status = 0") {
			return PollCompleted
		}
		return PollFailed
	default:
		return PollUnknown
	}
}

func (a *PBSAdapter) Cancel(ctx context.Context, ref JobRef) error {
	ctx, cancel := withCallTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, "qdel", ref.SchedulerJobID)
	var errOut bytes.Buffer
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return apperrors.New(apperrors.KindSchedulerCancel, "qdel", ref.SchedulerJobID, fmt.Errorf("%v: %s", err, errOut.String()))
	}
	return nil
}

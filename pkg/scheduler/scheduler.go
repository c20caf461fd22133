// Package scheduler implements the uniform submit/poll/cancel interface
// over SLURM, PBS, and the local fork adapter (spec §4.3).
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/3leaps/sbatchman/pkg/model"
)

// PollResult is the adapter-observed state of a scheduler job.
type PollResult string

const (
	PollPending   PollResult = "pending"
	PollRunning   PollResult = "running"
	PollCompleted PollResult = "completed"
	PollFailed    PollResult = "failed"
	PollUnknown   PollResult = "unknown"
)

// DefaultCallTimeout bounds every adapter shell-out (spec §5 "Cancellation
// /timeouts"). A call that exceeds it reports PollUnknown for this tick
// rather than blocking the polling loop.
const DefaultCallTimeout = 30 * time.Second

// SubmitSpec is everything an adapter needs to submit one job.
type SubmitSpec struct {
	JobDir     string
	ScriptPath string
	Flags      []string
	Env        []string
}

// JobRef identifies a previously submitted job for Poll/Cancel. JobDir is
// only consulted by the local adapter (it has no external job id authority
// to query); slurm/pbs ignore it.
type JobRef struct {
	SchedulerJobID string
	JobDir         string
}

// Adapter is the uniform capability set spec §4.3 describes.
type Adapter interface {
	Submit(ctx context.Context, spec SubmitSpec) (schedulerJobID string, err error)
	Poll(ctx context.Context, ref JobRef) (PollResult, error)
	Cancel(ctx context.Context, ref JobRef) error
}

// For resolves the adapter implementation for a cluster's scheduler kind.
// flags is the bound Config's flag list; the local adapter consults it for
// a "time" entry to wrap the job under timeout(1) (spec §4.3, supplemental
// feature). slurm/pbs ignore flags here — they pass it through verbatim to
// the scheduler at Submit time instead.
func For(s model.Scheduler, flags []string) (Adapter, error) {
	switch s {
	case model.SchedulerSlurm:
		return &SlurmAdapter{}, nil
	case model.SchedulerPBS:
		return &PBSAdapter{}, nil
	case model.SchedulerLocal:
		timeout, err := timeoutFromFlags(flags)
		if err != nil {
			return nil, err
		}
		return &LocalAdapter{Timeout: timeout}, nil
	default:
		return nil, fmt.Errorf("unknown scheduler kind %q", s)
	}
}

func withCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, DefaultCallTimeout)
}

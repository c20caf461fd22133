package lifecycle

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/3leaps/sbatchman/pkg/apperrors"
	"github.com/3leaps/sbatchman/pkg/model"
	"github.com/3leaps/sbatchman/pkg/scheduler"
	"github.com/3leaps/sbatchman/pkg/statedir"
	"github.com/3leaps/sbatchman/pkg/store"
)

// DefaultMaxUnknownTicks bounds how many consecutive PollUnknown results the
// engine tolerates before forcing a job to failed (spec §4.4 Polling).
const DefaultMaxUnknownTicks = 10

// DefaultPollInterval is the tick period a caller's scheduling loop should
// use if it has no override (spec §4.4 Polling: "default 2s").
const DefaultPollInterval = 2 * time.Second

// DefaultPollQPS caps how often PollTick is allowed to invoke an adapter's
// Poll, independent of how many non-terminal jobs exist. squeue/qstat are
// shared cluster services; a job count in the thousands should not turn
// into a query-per-job-per-tick flood against the scheduler.
const DefaultPollQPS = 20

// Engine drives admission and status reconciliation over a Store and
// state directory. It holds no goroutines of its own; a caller (CLI daemon
// loop, or tests) drives AdmissionTick/PollTick on its own schedule.
type Engine struct {
	Store           *store.Store
	Dir             *statedir.Dir
	SelfExe         string
	MaxUnknownTicks int
	PollLimiter     *rate.Limiter

	mu            sync.Mutex
	unknownStreak map[int64]int
}

func NewEngine(s *store.Store, dir *statedir.Dir, selfExe string) *Engine {
	return &Engine{
		Store:           s,
		Dir:             dir,
		SelfExe:         selfExe,
		MaxUnknownTicks: DefaultMaxUnknownTicks,
		PollLimiter:     rate.NewLimiter(rate.Limit(DefaultPollQPS), DefaultPollQPS),
		unknownStreak:   map[int64]int{},
	}
}

// Materialize writes a newly-expanded job's on-disk directory: metadata.txt
// and the generated run.sh (spec §3 "on-disk mirror").
func (e *Engine) Materialize(j model.Job) error {
	if err := e.Dir.Prepare(j.ID); err != nil {
		return err
	}
	if err := e.Dir.WriteMetadata(j); err != nil {
		return err
	}
	script := GenerateRunScript(e.SelfExe, j)
	if err := os.WriteFile(e.Dir.ScriptPath(j.ID), []byte(script), 0o755); err != nil {
		return apperrors.New(apperrors.KindStoreIO, "Materialize", e.Dir.ScriptPath(j.ID), err)
	}
	return nil
}

// AdmissionTick promotes FIFO virtual-queue entries into queued, one
// cluster's available slots at a time (spec §4.4 Admission).
func (e *Engine) AdmissionTick(ctx context.Context) error {
	candidates, err := e.Store.ListAdmissionCandidates(ctx)
	if err != nil {
		return err
	}

	available := map[int64]int{}
	for _, cand := range candidates {
		if _, ok := available[cand.ClusterID]; ok {
			continue
		}
		if cand.MaxJobs <= 0 {
			available[cand.ClusterID] = -1 // unlimited
			continue
		}
		active, err := e.Store.CountActiveByCluster(ctx, cand.ClusterID)
		if err != nil {
			return err
		}
		slots := cand.MaxJobs - active
		if slots < 0 {
			slots = 0
		}
		available[cand.ClusterID] = slots
	}

	for _, cand := range candidates {
		slots := available[cand.ClusterID]
		if slots == 0 {
			continue
		}
		if slots > 0 {
			available[cand.ClusterID] = slots - 1
		}

		cfg, err := e.Store.GetConfigByID(ctx, cand.Job.ConfigID)
		if err != nil {
			return err
		}
		adapter, err := scheduler.For(cand.Job.Scheduler, cfg.Flags)
		if err != nil {
			return err
		}

		schedulerJobID, err := scheduler.SubmitIdempotent(ctx, adapter, scheduler.SubmitSpec{
			JobDir:     e.Dir.JobDir(cand.Job.ID),
			ScriptPath: e.Dir.ScriptPath(cand.Job.ID),
			Flags:      cfg.Flags,
			Env:        cfg.Env,
		})
		if err != nil {
			if ferr := e.Store.FailAdmission(ctx, cand.Job.ID); ferr != nil {
				return ferr
			}
			continue
		}
		if err := e.Store.AdmitJob(ctx, cand.Job.ID, schedulerJobID); err != nil {
			return err
		}
	}
	return nil
}

// PollTick reconciles every non-terminal job against its scheduler adapter
// (spec §4.4 Polling).
func (e *Engine) PollTick(ctx context.Context) error {
	jobs, err := e.Store.ListNonTerminalJobs(ctx)
	if err != nil {
		return err
	}
	for _, j := range jobs {
		if j.Status != model.StatusQueued && j.Status != model.StatusRunning {
			continue
		}
		if err := e.reconcileOne(ctx, j); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) reconcileOne(ctx context.Context, j model.Job) error {
	adapter, err := scheduler.For(j.Scheduler, nil)
	if err != nil {
		return err
	}
	if e.PollLimiter != nil {
		if err := e.PollLimiter.Wait(ctx); err != nil {
			return err
		}
	}
	result, err := adapter.Poll(ctx, scheduler.JobRef{SchedulerJobID: j.SchedulerJobID, JobDir: e.Dir.JobDir(j.ID)})
	if err != nil {
		return err
	}

	if result == scheduler.PollUnknown {
		e.mu.Lock()
		e.unknownStreak[j.ID]++
		streak := e.unknownStreak[j.ID]
		e.mu.Unlock()
		if streak < e.MaxUnknownTicks {
			return nil
		}
		result = scheduler.PollFailed
	} else {
		e.mu.Lock()
		delete(e.unknownStreak, j.ID)
		e.mu.Unlock()
	}

	now := time.Now().UTC()
	switch result {
	case scheduler.PollPending:
		return nil
	case scheduler.PollRunning:
		_, err := e.Store.SetStatus(ctx, j.ID, model.StatusRunning, "", &now, nil)
		return err
	case scheduler.PollCompleted:
		_, err := e.Store.SetStatus(ctx, j.ID, model.StatusCompleted, "", nil, &now)
		return err
	case scheduler.PollFailed:
		_, err := e.Store.SetStatus(ctx, j.ID, model.StatusFailed, "", nil, &now)
		return err
	}
	return nil
}

// Cancel implements spec §4.4 Cancellation.
func (e *Engine) Cancel(ctx context.Context, jobID int64) error {
	j, err := e.Store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	switch j.Status {
	case model.StatusVirtualQueue:
		return e.Store.CancelQueued(ctx, jobID)
	case model.StatusQueued, model.StatusRunning:
		adapter, err := scheduler.For(j.Scheduler, nil)
		if err != nil {
			return err
		}
		if err := adapter.Cancel(ctx, scheduler.JobRef{SchedulerJobID: j.SchedulerJobID, JobDir: e.Dir.JobDir(j.ID)}); err != nil {
			return err
		}
		now := time.Now().UTC()
		_, err = e.Store.SetStatus(ctx, jobID, model.StatusFailed, "", nil, &now)
		return err
	default:
		return nil // already terminal; cancel is a no-op
	}
}

// Recover implements spec §4.4 Recovery: rebuild the DB from the state
// directory if it was lost, then re-issue poll for every non-terminal job.
func (e *Engine) Recover(ctx context.Context) error {
	clusters, err := e.Store.ListClusters(ctx)
	if err != nil {
		return err
	}
	if len(clusters) == 0 {
		n, err := e.Store.RebuildFromStateDir(ctx, e.Dir)
		if err != nil {
			return err
		}
		if n > 0 {
			fmt.Fprintf(os.Stderr, "sbatchman: recovered %d jobs from state directory\n", n)
		}
	}
	return e.PollTick(ctx)
}

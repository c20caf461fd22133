package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"os/exec"

	"github.com/3leaps/sbatchman/pkg/apperrors"
)

// exitCodeFile is the sidecar the local adapter writes once its child exits,
// since Submit returns as soon as the fork succeeds (spec §4.3: "local forks
// a child, writes PID as scheduler_job_id, polls by kill -0, stores exit
// code in a sidecar file").
const exitCodeFile = ".exitcode"

// LocalAdapter forks run.sh directly. Timeout, if set, wraps the script in
// `timeout <secs> bash script` (grounded on the original implementation's
// local executor, which treats exit code 124 as a timed-out run).
type LocalAdapter struct {
	Timeout time.Duration
}

func (a *LocalAdapter) Submit(ctx context.Context, spec SubmitSpec) (string, error) {
	var cmd *exec.Cmd
	if a.Timeout > 0 {
		cmd = exec.Command("timeout", strconv.Itoa(int(a.Timeout.Seconds())), "bash", spec.ScriptPath)
	} else {
		cmd = exec.Command("bash", spec.ScriptPath)
	}
	cmd.Dir = spec.JobDir
	cmd.Env = envWithExtra(spec.Env)

	stdout, err := os.OpenFile(filepath.Join(spec.JobDir, "stdout.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", apperrors.New(apperrors.KindSchedulerSubmit, "local.Submit", spec.JobDir, err)
	}
	stderr, err := os.OpenFile(filepath.Join(spec.JobDir, "stderr.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = stdout.Close()
		return "", apperrors.New(apperrors.KindSchedulerSubmit, "local.Submit", spec.JobDir, err)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		_ = stdout.Close()
		_ = stderr.Close()
		return "", apperrors.New(apperrors.KindSchedulerSubmit, "local.Submit", spec.JobDir, err)
	}
	pid := cmd.Process.Pid

	go func() {
		defer stdout.Close()
		defer stderr.Close()
		_ = cmd.Wait()
		code := cmd.ProcessState.ExitCode()
		_ = os.WriteFile(filepath.Join(spec.JobDir, exitCodeFile), []byte(strconv.Itoa(code)), 0o644)
	}()

	return strconv.Itoa(pid), nil
}

func (a *LocalAdapter) Poll(ctx context.Context, ref JobRef) (PollResult, error) {
	pid, err := strconv.Atoi(ref.SchedulerJobID)
	if err != nil {
		return PollUnknown, apperrors.New(apperrors.KindSchedulerPoll, "local.Poll", ref.SchedulerJobID, err)
	}

	if b, err := os.ReadFile(filepath.Join(ref.JobDir, exitCodeFile)); err == nil {
		code, err := strconv.Atoi(string(b))
		if err != nil {
			return PollUnknown, nil
		}
		// exit code 124 is the `timeout` wrapper's own signal for a
		// timed-out run; nonzero or signalled otherwise also fails.
		if code == 0 {
			return PollCompleted, nil
		}
		return PollFailed, nil
	}

	if processAlive(pid) {
		return PollRunning, nil
	}
	// Process is gone but no sidecar yet (race with the reaper goroutine);
	// treat as unknown for this tick rather than guessing.
	return PollUnknown, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func (a *LocalAdapter) Cancel(ctx context.Context, ref JobRef) error {
	pid, err := strconv.Atoi(ref.SchedulerJobID)
	if err != nil {
		return apperrors.New(apperrors.KindSchedulerCancel, "local.Cancel", ref.SchedulerJobID, err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil && processAlive(pid) {
		return apperrors.New(apperrors.KindSchedulerCancel, "local.Cancel", ref.SchedulerJobID, fmt.Errorf("signal SIGTERM: %w", err))
	}
	return nil
}

func envWithExtra(extra []string) []string {
	return append(os.Environ(), extra...)
}

// timeoutFromFlags scans a Config's ordered flag list for a "time" entry
// (e.g. "time=01:00:00" or "--time=1-00:00:00") and parses it with
// parseSlurmTime. Returns zero if no such flag is present.
func timeoutFromFlags(flags []string) (time.Duration, error) {
	for _, f := range flags {
		trimmed := strings.TrimLeft(f, "-")
		key, val, ok := strings.Cut(trimmed, "=")
		if !ok || key != "time" {
			continue
		}
		secs, err := parseSlurmTime(val)
		if err != nil {
			return 0, apperrors.New(apperrors.KindConfigParse, "timeoutFromFlags", f, err)
		}
		return time.Duration(secs) * time.Second, nil
	}
	return 0, nil
}

// parseSlurmTime parses a SLURM-style "[D-]HH:MM:SS" duration string into
// seconds (grounded on the original implementation's parse_time_to_seconds).
func parseSlurmTime(s string) (int64, error) {
	days := int64(0)
	timePart := s
	if d, t, ok := strings.Cut(s, "-"); ok {
		parsed, err := strconv.ParseInt(d, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid time format %q", s)
		}
		days = parsed
		timePart = t
	}

	parts := strings.Split(timePart, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid time format %q", s)
	}
	hours, err1 := strconv.ParseInt(parts[0], 10, 64)
	minutes, err2 := strconv.ParseInt(parts[1], 10, 64)
	seconds, err3 := strconv.ParseInt(parts[2], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, fmt.Errorf("invalid time format %q", s)
	}

	return days*86_400 + hours*3_600 + minutes*60 + seconds, nil
}

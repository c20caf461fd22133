package scheduler

import (
	"context"
	"os"
	"path/filepath"
)

const submittedSentinel = ".submitted"

// SubmitIdempotent wraps Adapter.Submit with the job-directory sentinel
// spec §4.3 requires: "resubmission returns prior id if a sentinel file
// .submitted exists". The sentinel is not scheduler-specific, so it lives
// here rather than in each adapter.
func SubmitIdempotent(ctx context.Context, a Adapter, spec SubmitSpec) (string, error) {
	sentinelPath := filepath.Join(spec.JobDir, submittedSentinel)
	if b, err := os.ReadFile(sentinelPath); err == nil {
		return string(b), nil
	}

	id, err := a.Submit(ctx, spec)
	if err != nil {
		return "", err
	}
	_ = os.WriteFile(sentinelPath, []byte(id), 0o644)
	return id, nil
}

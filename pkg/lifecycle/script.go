// Package lifecycle implements the Job Lifecycle Engine (spec §4.4): run
// script generation, admission against per-cluster max_jobs, status
// reconciliation, cancellation, and startup recovery.
package lifecycle

import (
	"fmt"
	"strings"

	"github.com/3leaps/sbatchman/pkg/model"
)

// GenerateRunScript builds run.sh content for a job: a status callback to
// mark it running, preprocess, command, postprocess in order, then a final
// callback with the observed exit code. Each stage's failure short-circuits
// straight to the failed callback (spec §4.4 "Generated run script").
//
// Grounded on the original implementation's add_job_commands, which
// concatenates preprocess/command/postprocess into one script; sbatchman
// additionally brackets the whole thing with __set-status callbacks since
// status here is engine-owned, not scheduler-owned.
func GenerateRunScript(selfExe string, j model.Job) string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	b.WriteString("set -uo pipefail\n\n")
	fmt.Fprintf(&b, "%s __set-status %d running\n\n", shQuote(selfExe), j.ID)

	writeStage(&b, selfExe, j.ID, "preprocess", j.Preprocess)
	writeStage(&b, selfExe, j.ID, "command", j.Command)
	writeStage(&b, selfExe, j.ID, "postprocess", j.Postprocess)

	fmt.Fprintf(&b, "%s __set-status %d completed 0\n", shQuote(selfExe), j.ID)
	b.WriteString("exit 0\n")
	return b.String()
}

func writeStage(b *strings.Builder, selfExe string, jobID int64, label, stage string) {
	if strings.TrimSpace(stage) == "" {
		return
	}
	fmt.Fprintf(b, "# %s\n", label)
	b.WriteString(stage)
	b.WriteString("\n")
	fmt.Fprintf(b, "rc=$?\n")
	fmt.Fprintf(b, "if [ \"$rc\" -ne 0 ]; then %s __set-status %d failed \"$rc\"; exit \"$rc\"; fi\n\n", shQuote(selfExe), jobID)
}

func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Package statedir manages the on-disk per-job mirror under
// <root>/jobs/<id>/ (spec §3 "On-disk mirror", §6 "State directory").
package statedir

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/3leaps/sbatchman/pkg/apperrors"
	"github.com/3leaps/sbatchman/pkg/model"
)

// Dir wraps the root state directory, resolved once by internal/rootdir
// and passed explicitly (spec §9 "no hidden globals").
type Dir struct {
	Root string
}

func New(root string) *Dir {
	return &Dir{Root: strings.TrimSpace(root)}
}

func (d *Dir) JobsRoot() string {
	return filepath.Join(d.Root, "jobs")
}

func (d *Dir) JobDir(jobID int64) string {
	return filepath.Join(d.JobsRoot(), strconv.FormatInt(jobID, 10))
}

func (d *Dir) ScriptPath(jobID int64) string   { return filepath.Join(d.JobDir(jobID), "run.sh") }
func (d *Dir) StdoutPath(jobID int64) string   { return filepath.Join(d.JobDir(jobID), "stdout.log") }
func (d *Dir) StderrPath(jobID int64) string   { return filepath.Join(d.JobDir(jobID), "stderr.log") }
func (d *Dir) ResultsDir(jobID int64) string   { return filepath.Join(d.JobDir(jobID), "results") }
func (d *Dir) MetadataPath(jobID int64) string { return filepath.Join(d.JobDir(jobID), "metadata.txt") }

// Prepare creates a fresh job directory with its results subdirectory.
func (d *Dir) Prepare(jobID int64) error {
	if err := os.MkdirAll(d.ResultsDir(jobID), 0755); err != nil {
		return apperrors.New(apperrors.KindStoreIO, "statedir.Prepare", d.JobDir(jobID), err)
	}
	return nil
}

// WriteMetadata atomically (temp+rename, the teacher's jobregistry.Store
// pattern) writes the line-oriented metadata.txt snapshot spec §6 defines.
func (d *Dir) WriteMetadata(j model.Job) error {
	jobDir := d.JobDir(j.ID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return apperrors.New(apperrors.KindStoreIO, "statedir.WriteMetadata", jobDir, err)
	}

	varsJSON, err := marshalVariables(j.Variables)
	if err != nil {
		return apperrors.New(apperrors.KindStoreIO, "statedir.WriteMetadata", jobDir, err)
	}

	lines := []string{
		kv("id", fmt.Sprint(j.ID)),
		kv("job_name", j.JobName),
		kv("cluster_name", j.ClusterName),
		kv("config_name", j.ConfigName),
		kv("scheduler", string(j.Scheduler)),
		kv("submit_time", j.SubmitTime.Format(time.RFC3339Nano)),
		kv("start_time", timeStr(j.StartTime)),
		kv("end_time", timeStr(j.EndTime)),
		kv("status", string(j.Status)),
		kv("scheduler_job_id", j.SchedulerJobID),
		kv("command", j.Command),
		kv("preprocess", j.Preprocess),
		kv("postprocess", j.Postprocess),
		kv("archived", fmt.Sprint(j.Archived)),
		kv("variables_json", varsJSON),
	}
	content := strings.Join(lines, "\n") + "\n"

	tmp, err := os.CreateTemp(jobDir, "metadata.txt.tmp.*")
	if err != nil {
		return apperrors.New(apperrors.KindStoreIO, "statedir.WriteMetadata", jobDir, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		return apperrors.New(apperrors.KindStoreIO, "statedir.WriteMetadata", jobDir, err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.New(apperrors.KindStoreIO, "statedir.WriteMetadata", jobDir, err)
	}
	if err := os.Rename(tmpName, d.MetadataPath(j.ID)); err != nil {
		return apperrors.New(apperrors.KindStoreIO, "statedir.WriteMetadata", jobDir, err)
	}
	return nil
}

func kv(key, value string) string {
	return key + ": " + value
}

func timeStr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func marshalVariables(vars map[string]any) (string, error) {
	if vars == nil {
		vars = map[string]any{}
	}
	b, err := json.Marshal(vars)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

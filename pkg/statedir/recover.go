package statedir

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/3leaps/sbatchman/pkg/apperrors"
	"github.com/3leaps/sbatchman/pkg/model"
)

// Snapshot is the metadata.txt content parsed back into typed fields,
// enough to rebuild a Job plus its owning Config/Cluster rows (spec §4.4
// Recovery: "rebuild the DB by reading every metadata.txt; cluster/config
// rows reconstruct from the embedded snapshot").
type Snapshot struct {
	Job         model.Job
	ClusterName string
	ConfigName  string
	Scheduler   model.Scheduler
}

// ListJobIDs returns every job ID with a job directory under <root>/jobs/.
func (d *Dir) ListJobIDs() ([]int64, error) {
	entries, err := os.ReadDir(d.JobsRoot())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.New(apperrors.KindStoreIO, "statedir.ListJobIDs", d.JobsRoot(), err)
	}
	var ids []int64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := strconv.ParseInt(e.Name(), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ReadMetadata parses the metadata.txt mirror for a job.
func (d *Dir) ReadMetadata(jobID int64) (Snapshot, error) {
	path := d.MetadataPath(jobID)
	b, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, apperrors.New(apperrors.KindStoreIO, "statedir.ReadMetadata", path, err)
	}

	fields := map[string]string{}
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		idx := strings.Index(line, ": ")
		if idx < 0 {
			continue
		}
		fields[line[:idx]] = line[idx+2:]
	}

	var snap Snapshot
	snap.Job.ID = jobID
	snap.Job.JobName = fields["job_name"]
	snap.Job.Directory = filepath.Dir(path)
	snap.Job.Command = fields["command"]
	snap.Job.Preprocess = fields["preprocess"]
	snap.Job.Postprocess = fields["postprocess"]
	snap.Job.Status = model.Status(fields["status"])
	snap.Job.SchedulerJobID = fields["scheduler_job_id"]
	snap.Job.Archived = fields["archived"] == "true"
	snap.ClusterName = fields["cluster_name"]
	snap.ConfigName = fields["config_name"]
	snap.Scheduler = model.Scheduler(fields["scheduler"])

	if t, err := time.Parse(time.RFC3339Nano, fields["submit_time"]); err == nil {
		snap.Job.SubmitTime = t
	}
	if v := fields["start_time"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			snap.Job.StartTime = &t
		}
	}
	if v := fields["end_time"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			snap.Job.EndTime = &t
		}
	}
	if v := fields["variables_json"]; v != "" {
		_ = json.Unmarshal([]byte(v), &snap.Job.Variables)
	}

	return snap, nil
}

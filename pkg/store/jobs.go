package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/3leaps/sbatchman/pkg/apperrors"
	"github.com/3leaps/sbatchman/pkg/model"
)

// InsertJob creates a new job row with status=virtualqueue and enqueues it
// (spec §3 "Admission": jobs enter with status virtualqueue).
func (s *Store) InsertJob(ctx context.Context, j model.Job) (model.Job, error) {
	varsJSON, err := json.Marshal(j.Variables)
	if err != nil {
		return model.Job{}, apperrors.New(apperrors.KindStoreIO, "InsertJob", j.JobName, err)
	}
	if j.SubmitTime.IsZero() {
		j.SubmitTime = time.Now().UTC()
	}
	j.Status = model.StatusVirtualQueue

	err = s.withWriteLock(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO jobs
			(job_name, config_id, submit_time, directory, command, preprocess, postprocess, status, archived, variables_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			j.JobName, j.ConfigID, j.SubmitTime.Format(time.RFC3339Nano), j.Directory, j.Command,
			j.Preprocess, j.Postprocess, string(j.Status), boolToInt(j.Archived), string(varsJSON))
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		j.ID = id
		_, err = tx.ExecContext(ctx, `INSERT INTO virtual_queue (job_id) VALUES (?)`, id)
		if err != nil {
			return fmt.Errorf("enqueue job: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Job{}, apperrors.New(apperrors.KindStoreIO, "InsertJob", j.JobName, err)
	}
	return j, nil
}

const jobSelectColumns = `j.id, j.job_name, j.config_id, j.submit_time, j.start_time, j.end_time,
	j.directory, j.command, j.preprocess, j.postprocess, j.status, j.scheduler_job_id, j.archived, j.variables_json,
	c.config_name, cl.cluster_name, cl.scheduler`

const jobSelectFrom = `FROM jobs j
	JOIN configs c ON c.id = j.config_id
	JOIN clusters cl ON cl.id = c.cluster_id`

func scanJob(row interface{ Scan(...any) error }) (model.Job, error) {
	var j model.Job
	var submitTime string
	var startTime, endTime, schedulerJobID sql.NullString
	var archived int
	var varsJSON string
	var sched string
	if err := row.Scan(&j.ID, &j.JobName, &j.ConfigID, &submitTime, &startTime, &endTime,
		&j.Directory, &j.Command, &j.Preprocess, &j.Postprocess, &j.Status, &schedulerJobID, &archived, &varsJSON,
		&j.ConfigName, &j.ClusterName, &sched); err != nil {
		return model.Job{}, err
	}
	j.Scheduler = model.Scheduler(sched)
	j.SubmitTime, _ = time.Parse(time.RFC3339Nano, submitTime)
	if startTime.Valid {
		t, _ := time.Parse(time.RFC3339Nano, startTime.String)
		j.StartTime = &t
	}
	if endTime.Valid {
		t, _ := time.Parse(time.RFC3339Nano, endTime.String)
		j.EndTime = &t
	}
	j.SchedulerJobID = schedulerJobID.String
	j.Archived = archived != 0
	_ = json.Unmarshal([]byte(varsJSON), &j.Variables)
	return j, nil
}

// ImportJob inserts a job from a bundle archive, allocating a new ID and
// bypassing the virtual queue entirely (spec §4.5 Import: "re-insert rows
// allocating new job IDs... imported jobs arrive in their original terminal
// status"). Callers are responsible for coercing non-terminal statuses to
// failed before calling this, per the same section.
func (s *Store) ImportJob(ctx context.Context, j model.Job) (model.Job, error) {
	varsJSON, err := json.Marshal(j.Variables)
	if err != nil {
		return model.Job{}, apperrors.New(apperrors.KindBundleFormat, "ImportJob", j.JobName, err)
	}

	var startTime, endTime sql.NullString
	if j.StartTime != nil {
		startTime = sql.NullString{String: j.StartTime.Format(time.RFC3339Nano), Valid: true}
	}
	if j.EndTime != nil {
		endTime = sql.NullString{String: j.EndTime.Format(time.RFC3339Nano), Valid: true}
	}

	err = s.withWriteLock(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO jobs
			(job_name, config_id, submit_time, start_time, end_time, directory, command, preprocess, postprocess, status, scheduler_job_id, archived, variables_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			j.JobName, j.ConfigID, j.SubmitTime.Format(time.RFC3339Nano), startTime, endTime, j.Directory, j.Command,
			j.Preprocess, j.Postprocess, string(j.Status), j.SchedulerJobID, boolToInt(j.Archived), string(varsJSON))
		if err != nil {
			return fmt.Errorf("insert imported job: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		j.ID = id
		return nil
	})
	if err != nil {
		return model.Job{}, apperrors.New(apperrors.KindBundleFormat, "ImportJob", j.JobName, err)
	}
	return j, nil
}

// ScanJobRow exposes scanJob to other packages (pkg/query) that compose
// their own joins over the same jobs/configs/clusters column layout.
func ScanJobRow(rows *sql.Rows) (model.Job, error) {
	return scanJob(rows)
}

// GetJob returns a single job by ID.
func (s *Store) GetJob(ctx context.Context, id int64) (model.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobSelectColumns+` `+jobSelectFrom+` WHERE j.id=?`, id)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Job{}, apperrors.New(apperrors.KindInvariant, "GetJob", fmt.Sprint(id), fmt.Errorf("job not found"))
		}
		return model.Job{}, apperrors.New(apperrors.KindStoreIO, "GetJob", fmt.Sprint(id), err)
	}
	return j, nil
}

// ListNonTerminalJobs returns every job not in a terminal status, used by
// both the polling tick and startup recovery (spec §4.4).
func (s *Store) ListNonTerminalJobs(ctx context.Context) ([]model.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobSelectColumns+` `+jobSelectFrom+`
		WHERE j.status NOT IN (?, ?) ORDER BY j.id`, model.StatusCompleted, model.StatusFailed)
	if err != nil {
		return nil, apperrors.New(apperrors.KindStoreIO, "ListNonTerminalJobs", "", err)
	}
	defer rows.Close()
	var out []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, apperrors.New(apperrors.KindStoreIO, "ListNonTerminalJobs", "", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// CountActiveByCluster returns count(status in {queued,running}) for a
// cluster (spec §3 invariant, §4.4 Admission).
func (s *Store) CountActiveByCluster(ctx context.Context, clusterID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) `+jobSelectFrom+`
		WHERE cl.id=? AND j.status IN (?, ?)`, clusterID, model.StatusQueued, model.StatusRunning).Scan(&n)
	if err != nil {
		return 0, apperrors.New(apperrors.KindStoreIO, "CountActiveByCluster", fmt.Sprint(clusterID), err)
	}
	return n, nil
}

// SetStatus applies a monotonic-rank status write (spec §5 "Ordering
// guarantees": the write whose target rank is higher wins; equal-rank
// writes are idempotent). Returns the job's status after the call.
func (s *Store) SetStatus(ctx context.Context, jobID int64, target model.Status, schedulerJobID string, startTime, endTime *time.Time) (model.Status, error) {
	var result model.Status
	err := s.withWriteLock(ctx, func(tx *sql.Tx) error {
		var current string
		if err := tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id=?`, jobID).Scan(&current); err != nil {
			return fmt.Errorf("lookup job status: %w", err)
		}
		currentStatus := model.Status(current)
		if target.Rank() < currentStatus.Rank() {
			result = currentStatus
			return nil
		}
		if target.Rank() == currentStatus.Rank() {
			result = currentStatus
			return nil
		}

		setClauses := "status=?"
		args := []any{string(target)}
		if schedulerJobID != "" {
			setClauses += ", scheduler_job_id=?"
			args = append(args, schedulerJobID)
		}
		if startTime != nil {
			setClauses += ", start_time=?"
			args = append(args, startTime.Format(time.RFC3339Nano))
		}
		if endTime != nil {
			setClauses += ", end_time=?"
			args = append(args, endTime.Format(time.RFC3339Nano))
		}
		args = append(args, jobID)
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE jobs SET %s WHERE id=?`, setClauses), args...); err != nil {
			return fmt.Errorf("update job status: %w", err)
		}

		if target == model.StatusQueued && currentStatus == model.StatusVirtualQueue {
			if _, err := tx.ExecContext(ctx, `DELETE FROM virtual_queue WHERE job_id=?`, jobID); err != nil {
				return fmt.Errorf("dequeue job: %w", err)
			}
		}
		result = target
		return nil
	})
	if err != nil {
		return "", apperrors.New(apperrors.KindStoreIO, "SetStatus", fmt.Sprint(jobID), err)
	}
	return result, nil
}

// SetArchived marks a job archived; spec §3 invariant requires the job
// already be terminal.
func (s *Store) SetArchived(ctx context.Context, jobID int64, archived bool) error {
	err := s.withWriteLock(ctx, func(tx *sql.Tx) error {
		var status string
		if err := tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id=?`, jobID).Scan(&status); err != nil {
			return fmt.Errorf("lookup job status: %w", err)
		}
		if archived && !model.Status(status).Terminal() {
			return fmt.Errorf("cannot archive non-terminal job %d (status=%s)", jobID, status)
		}
		_, err := tx.ExecContext(ctx, `UPDATE jobs SET archived=? WHERE id=?`, boolToInt(archived), jobID)
		return err
	})
	if err != nil {
		return apperrors.New(apperrors.KindInvariant, "SetArchived", fmt.Sprint(jobID), err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

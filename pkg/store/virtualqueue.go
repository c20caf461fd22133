package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/3leaps/sbatchman/pkg/apperrors"
	"github.com/3leaps/sbatchman/pkg/model"
)

// AdmissionCandidate pairs a queued job with its owning cluster, as needed
// by the lifecycle engine's admission tick.
type AdmissionCandidate struct {
	QueueID   int64
	Job       model.Job
	ClusterID int64
	MaxJobs   int
}

// ListAdmissionCandidates returns virtual-queue entries FIFO by queue id,
// joined with cluster capacity (spec §4.4 Admission, §5 "admission follows
// VirtualQueue row id order").
func (s *Store) ListAdmissionCandidates(ctx context.Context) ([]AdmissionCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT vq.id, j.id, cl.id, cl.max_jobs
		FROM virtual_queue vq
		JOIN jobs j ON j.id = vq.job_id
		JOIN configs c ON c.id = j.config_id
		JOIN clusters cl ON cl.id = c.cluster_id
		ORDER BY vq.id`)
	if err != nil {
		return nil, apperrors.New(apperrors.KindStoreIO, "ListAdmissionCandidates", "", err)
	}
	defer rows.Close()

	var out []AdmissionCandidate
	var jobIDs []int64
	for rows.Next() {
		var cand AdmissionCandidate
		var jobID int64
		if err := rows.Scan(&cand.QueueID, &jobID, &cand.ClusterID, &cand.MaxJobs); err != nil {
			return nil, apperrors.New(apperrors.KindStoreIO, "ListAdmissionCandidates", "", err)
		}
		out = append(out, cand)
		jobIDs = append(jobIDs, jobID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Release the connection before loading jobs: the pool may hold only one.
	_ = rows.Close()
	for i, jobID := range jobIDs {
		job, err := s.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		out[i].Job = job
	}
	return out, nil
}

// AdmitJob removes job's virtual-queue row and promotes it to queued with
// the scheduler_job_id returned by the adapter's submit call.
func (s *Store) AdmitJob(ctx context.Context, jobID int64, schedulerJobID string) error {
	err := s.withWriteLock(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE jobs SET status=?, scheduler_job_id=? WHERE id=?`,
			string(model.StatusQueued), schedulerJobID, jobID); err != nil {
			return fmt.Errorf("admit job: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM virtual_queue WHERE job_id=?`, jobID); err != nil {
			return fmt.Errorf("dequeue job: %w", err)
		}
		return nil
	})
	if err != nil {
		return apperrors.New(apperrors.KindStoreIO, "AdmitJob", fmt.Sprint(jobID), err)
	}
	return nil
}

// FailAdmission marks a job failed after a submit error and removes it
// from the virtual queue (spec §4.4: "If submit fails, status → failed,
// error recorded; VirtualQueue row deleted").
func (s *Store) FailAdmission(ctx context.Context, jobID int64) error {
	err := s.withWriteLock(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE jobs SET status=? WHERE id=?`, string(model.StatusFailed), jobID); err != nil {
			return fmt.Errorf("fail job: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM virtual_queue WHERE job_id=?`, jobID); err != nil {
			return fmt.Errorf("dequeue job: %w", err)
		}
		return nil
	})
	if err != nil {
		return apperrors.New(apperrors.KindStoreIO, "FailAdmission", fmt.Sprint(jobID), err)
	}
	return nil
}

// CancelQueued removes a virtual-queue row and marks the job failed,
// without involving a scheduler adapter (spec §4.4 Cancellation,
// virtualqueue case).
func (s *Store) CancelQueued(ctx context.Context, jobID int64) error {
	return s.FailAdmission(ctx, jobID)
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/3leaps/sbatchman/pkg/apperrors"
	"github.com/3leaps/sbatchman/pkg/model"
	"github.com/3leaps/sbatchman/pkg/statedir"
)

// RebuildFromStateDir reconstructs clusters, configs, and jobs entirely
// from on-disk metadata.txt snapshots, for the case spec §4.4 Recovery
// describes: "If the DB file is lost but <root>/jobs/ survives, rebuild
// the DB by reading every metadata.txt."
//
// Jobs are reinserted with their original IDs and statuses rather than
// going through InsertJob/virtual-queue admission, since a recovered job
// has already been submitted (or terminated) in reality.
func (s *Store) RebuildFromStateDir(ctx context.Context, dir *statedir.Dir) (int, error) {
	ids, err := dir.ListJobIDs()
	if err != nil {
		return 0, err
	}

	clusterIDs := map[string]int64{}
	configIDs := map[string]int64{}
	rebuilt := 0

	for _, id := range ids {
		snap, err := dir.ReadMetadata(id)
		if err != nil {
			continue
		}

		clusterKey := snap.ClusterName
		clusterID, ok := clusterIDs[clusterKey]
		if !ok {
			c, err := s.UpsertCluster(ctx, model.Cluster{ClusterName: snap.ClusterName, Scheduler: snap.Scheduler})
			if err != nil {
				return rebuilt, err
			}
			clusterID = c.ID
			clusterIDs[clusterKey] = clusterID
		}

		configKey := snap.ClusterName + "/" + snap.ConfigName
		configID, ok := configIDs[configKey]
		if !ok {
			cfg, err := s.UpsertConfig(ctx, model.Config{ConfigName: snap.ConfigName, ClusterID: clusterID})
			if err != nil {
				return rebuilt, err
			}
			configID = cfg.ID
			configIDs[configKey] = configID
		}

		snap.Job.ConfigID = configID
		if err := s.reinsertJobWithID(ctx, snap.Job); err != nil {
			return rebuilt, err
		}
		rebuilt++
	}
	return rebuilt, nil
}

// reinsertJobWithID inserts a job preserving its original ID, used only by
// recovery where the ID is the job directory name on disk.
func (s *Store) reinsertJobWithID(ctx context.Context, j model.Job) error {
	varsJSON, err := json.Marshal(j.Variables)
	if err != nil {
		return apperrors.New(apperrors.KindStoreIO, "reinsertJobWithID", fmt.Sprint(j.ID), err)
	}

	var startTime, endTime sql.NullString
	if j.StartTime != nil {
		startTime = sql.NullString{String: j.StartTime.Format(time.RFC3339Nano), Valid: true}
	}
	if j.EndTime != nil {
		endTime = sql.NullString{String: j.EndTime.Format(time.RFC3339Nano), Valid: true}
	}

	err = s.withWriteLock(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO jobs
			(id, job_name, config_id, submit_time, start_time, end_time, directory, command,
			 preprocess, postprocess, status, scheduler_job_id, archived, variables_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			j.ID, j.JobName, j.ConfigID, j.SubmitTime.Format(time.RFC3339Nano), startTime, endTime,
			j.Directory, j.Command, j.Preprocess, j.Postprocess, string(j.Status), j.SchedulerJobID,
			boolToInt(j.Archived), string(varsJSON))
		return err
	})
	if err != nil {
		return apperrors.New(apperrors.KindStoreIO, "reinsertJobWithID", fmt.Sprint(j.ID), err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/3leaps/sbatchman/pkg/apperrors"
	"github.com/3leaps/sbatchman/pkg/model"
)

// UpsertCluster creates a cluster or, on (cluster_name) conflict, merges
// scheduler/max_jobs into the existing row (spec §3: "mutated only by
// re-import").
func (s *Store) UpsertCluster(ctx context.Context, c model.Cluster) (model.Cluster, error) {
	var out model.Cluster
	err := s.withWriteLock(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT id, scheduler, max_jobs FROM clusters WHERE cluster_name = ?`, c.ClusterName)
		var existingID int64
		var existingScheduler string
		var existingMaxJobs int
		err := row.Scan(&existingID, &existingScheduler, &existingMaxJobs)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx, `INSERT INTO clusters (cluster_name, scheduler, max_jobs) VALUES (?, ?, ?)`,
				c.ClusterName, string(c.Scheduler), c.MaxJobs)
			if err != nil {
				return fmt.Errorf("insert cluster: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("insert cluster id: %w", err)
			}
			out = c
			out.ID = id
			return nil
		case err != nil:
			return fmt.Errorf("lookup cluster: %w", err)
		default:
			// Merge on re-import: imported scheduler/max_jobs win (Open
			// Question resolved in DESIGN.md: merge, not reject).
			if _, err := tx.ExecContext(ctx, `UPDATE clusters SET scheduler=?, max_jobs=? WHERE id=?`,
				string(c.Scheduler), c.MaxJobs, existingID); err != nil {
				return fmt.Errorf("update cluster: %w", err)
			}
			out = c
			out.ID = existingID
			return nil
		}
	})
	if err != nil {
		return model.Cluster{}, apperrors.New(apperrors.KindStoreIO, "UpsertCluster", c.ClusterName, err)
	}
	return out, nil
}

// GetClusterByName returns the cluster with the given name.
func (s *Store) GetClusterByName(ctx context.Context, name string) (model.Cluster, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, cluster_name, scheduler, max_jobs FROM clusters WHERE cluster_name=?`, name)
	var c model.Cluster
	var sched string
	if err := row.Scan(&c.ID, &c.ClusterName, &sched, &c.MaxJobs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Cluster{}, apperrors.New(apperrors.KindConfigUnresolved, "GetClusterByName", name, fmt.Errorf("cluster not found"))
		}
		return model.Cluster{}, apperrors.New(apperrors.KindStoreIO, "GetClusterByName", name, err)
	}
	c.Scheduler = model.Scheduler(sched)
	return c, nil
}

// ListClusters returns every cluster, ordered by name.
func (s *Store) ListClusters(ctx context.Context) ([]model.Cluster, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, cluster_name, scheduler, max_jobs FROM clusters ORDER BY cluster_name`)
	if err != nil {
		return nil, apperrors.New(apperrors.KindStoreIO, "ListClusters", "", err)
	}
	defer rows.Close()

	var out []model.Cluster
	for rows.Next() {
		var c model.Cluster
		var sched string
		if err := rows.Scan(&c.ID, &c.ClusterName, &sched, &c.MaxJobs); err != nil {
			return nil, apperrors.New(apperrors.KindStoreIO, "ListClusters", "", err)
		}
		c.Scheduler = model.Scheduler(sched)
		out = append(out, c)
	}
	return out, rows.Err()
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/3leaps/sbatchman/pkg/apperrors"
	"github.com/3leaps/sbatchman/pkg/model"
)

// UpsertConfig creates a config or replaces an existing one with the same
// (cluster_id, config_name) (spec §3: "never mutated after creation
// (re-import replaces)").
func (s *Store) UpsertConfig(ctx context.Context, c model.Config) (model.Config, error) {
	flagsJSON, err := json.Marshal(c.Flags)
	if err != nil {
		return model.Config{}, apperrors.New(apperrors.KindStoreIO, "UpsertConfig", c.ConfigName, err)
	}
	envJSON, err := json.Marshal(c.Env)
	if err != nil {
		return model.Config{}, apperrors.New(apperrors.KindStoreIO, "UpsertConfig", c.ConfigName, err)
	}

	var out model.Config
	err = s.withWriteLock(ctx, func(tx *sql.Tx) error {
		var existingID int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM configs WHERE cluster_id=? AND config_name=?`, c.ClusterID, c.ConfigName).Scan(&existingID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx, `INSERT INTO configs (config_name, cluster_id, flags, env) VALUES (?, ?, ?, ?)`,
				c.ConfigName, c.ClusterID, string(flagsJSON), string(envJSON))
			if err != nil {
				return fmt.Errorf("insert config: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			out = c
			out.ID = id
			return nil
		case err != nil:
			return fmt.Errorf("lookup config: %w", err)
		default:
			if _, err := tx.ExecContext(ctx, `UPDATE configs SET flags=?, env=? WHERE id=?`, string(flagsJSON), string(envJSON), existingID); err != nil {
				return fmt.Errorf("replace config: %w", err)
			}
			out = c
			out.ID = existingID
			return nil
		}
	})
	if err != nil {
		return model.Config{}, apperrors.New(apperrors.KindStoreIO, "UpsertConfig", c.ConfigName, err)
	}
	return out, nil
}

// GetConfigsByName resolves a config by name across the given cluster IDs.
// Passing nil searches every cluster (spec §4.1 Phase VII).
func (s *Store) GetConfigsByName(ctx context.Context, name string, clusterIDs []int64) ([]model.Config, error) {
	query := `SELECT id, config_name, cluster_id, flags, env FROM configs WHERE config_name=?`
	args := []any{name}
	if len(clusterIDs) > 0 {
		query += " AND cluster_id IN (" + placeholders(len(clusterIDs)) + ")"
		for _, id := range clusterIDs {
			args = append(args, id)
		}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.New(apperrors.KindStoreIO, "GetConfigsByName", name, err)
	}
	defer rows.Close()

	var out []model.Config
	for rows.Next() {
		var c model.Config
		var flagsJSON, envJSON string
		if err := rows.Scan(&c.ID, &c.ConfigName, &c.ClusterID, &flagsJSON, &envJSON); err != nil {
			return nil, apperrors.New(apperrors.KindStoreIO, "GetConfigsByName", name, err)
		}
		_ = json.Unmarshal([]byte(flagsJSON), &c.Flags)
		_ = json.Unmarshal([]byte(envJSON), &c.Env)
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetConfig resolves a single config by its cluster and config name (spec
// §6 library surface: get_cluster_config).
func (s *Store) GetConfig(ctx context.Context, clusterName, configName string) (model.Config, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT configs.id, configs.config_name, configs.cluster_id, configs.flags, configs.env
		FROM configs JOIN clusters ON clusters.id = configs.cluster_id
		WHERE clusters.cluster_name=? AND configs.config_name=?`, clusterName, configName)
	var c model.Config
	var flagsJSON, envJSON string
	if err := row.Scan(&c.ID, &c.ConfigName, &c.ClusterID, &flagsJSON, &envJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Config{}, apperrors.New(apperrors.KindConfigUnresolved, "GetConfig", clusterName+"/"+configName, fmt.Errorf("config not found"))
		}
		return model.Config{}, apperrors.New(apperrors.KindStoreIO, "GetConfig", clusterName+"/"+configName, err)
	}
	_ = json.Unmarshal([]byte(flagsJSON), &c.Flags)
	_ = json.Unmarshal([]byte(envJSON), &c.Env)
	return c, nil
}

func (s *Store) GetConfigByID(ctx context.Context, id int64) (model.Config, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, config_name, cluster_id, flags, env FROM configs WHERE id=?`, id)
	var c model.Config
	var flagsJSON, envJSON string
	if err := row.Scan(&c.ID, &c.ConfigName, &c.ClusterID, &flagsJSON, &envJSON); err != nil {
		return model.Config{}, apperrors.New(apperrors.KindStoreIO, "GetConfigByID", fmt.Sprint(id), err)
	}
	_ = json.Unmarshal([]byte(flagsJSON), &c.Flags)
	_ = json.Unmarshal([]byte(envJSON), &c.Env)
	return c, nil
}

func placeholders(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ","
		}
		out += "?"
	}
	return out
}

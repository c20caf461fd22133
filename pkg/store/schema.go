package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SchemaVersion is the current forward-only schema version (spec §4.2:
// "a schema_version table drives forward-only migrations applied at open").
const SchemaVersion = 1

// Migrate creates or upgrades the schema in place.
func Migrate(ctx context.Context, db *sql.DB) error {
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schema_version INTEGER NOT NULL
		);`,
		`INSERT INTO schema_meta (id, schema_version) VALUES (1, 0)
			ON CONFLICT(id) DO NOTHING;`,

		`CREATE TABLE IF NOT EXISTS clusters (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cluster_name TEXT NOT NULL UNIQUE,
			scheduler TEXT NOT NULL,
			max_jobs INTEGER NOT NULL DEFAULT 0
		);`,

		`CREATE TABLE IF NOT EXISTS configs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			config_name TEXT NOT NULL,
			cluster_id INTEGER NOT NULL,
			flags TEXT NOT NULL DEFAULT '[]',
			env TEXT NOT NULL DEFAULT '[]',
			UNIQUE(cluster_id, config_name),
			FOREIGN KEY(cluster_id) REFERENCES clusters(id)
		);`,

		`CREATE TABLE IF NOT EXISTS jobs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			job_name TEXT NOT NULL,
			config_id INTEGER NOT NULL,
			submit_time TEXT NOT NULL,
			start_time TEXT,
			end_time TEXT,
			directory TEXT NOT NULL,
			command TEXT NOT NULL,
			preprocess TEXT NOT NULL DEFAULT '',
			postprocess TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			scheduler_job_id TEXT,
			archived INTEGER NOT NULL DEFAULT 0,
			variables_json TEXT NOT NULL DEFAULT '{}',
			FOREIGN KEY(config_id) REFERENCES configs(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_submit_time ON jobs(submit_time);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_config_id ON jobs(config_id);`,

		`CREATE TABLE IF NOT EXISTS virtual_queue (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id INTEGER NOT NULL UNIQUE,
			FOREIGN KEY(job_id) REFERENCES jobs(id)
		);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}

	var current int
	if err := tx.QueryRowContext(ctx, `SELECT schema_version FROM schema_meta WHERE id=1`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}

	// Future ALTER TABLE migrations go here, gated on `current`, tolerant of
	// "duplicate column name"/"already exists" the way indexstore's schema
	// migration is, e.g.:
	//
	// if current < 2 {
	//     alters := []string{`ALTER TABLE jobs ADD COLUMN ...`}
	//     for _, stmt := range alters {
	//         if _, err := tx.ExecContext(ctx, stmt); err != nil {
	//             if !isDuplicateColumnErr(err) {
	//                 return err
	//             }
	//         }
	//     }
	// }

	if current != SchemaVersion {
		if _, err := tx.ExecContext(ctx, `UPDATE schema_meta SET schema_version=? WHERE id=1`, SchemaVersion); err != nil {
			return fmt.Errorf("update schema_version: %w", err)
		}
	}

	return tx.Commit()
}

func isDuplicateColumnErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate column name") || strings.Contains(msg, "already exists")
}

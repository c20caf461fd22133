// Package store is the SQLite-backed persistence layer for clusters,
// configs, jobs, and the virtual queue (spec §3, §4.2).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/3leaps/sbatchman/pkg/apperrors"
)

// Config selects the database location. Path is a local filesystem path;
// URL is a libsql/Turso URL (cgo builds only).
type Config struct {
	Path      string
	URL       string
	AuthToken string
}

// Store wraps a *sql.DB with the advisory write lock spec §4.2 requires:
// writes serialize on writeMu. File-backed stores keep a single pooled
// connection (configureLocalSQLite), so their reads take turns as well.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
}

func buildDSN(cfg Config) (string, error) {
	if u := strings.TrimSpace(cfg.URL); u != "" {
		return addAuthToken(u, cfg.AuthToken)
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", fmt.Errorf("store path or url is required")
	}
	if path == ":memory:" {
		return path, nil
	}
	if err := ensureStoreDir(path); err != nil {
		return "", err
	}
	return "file:" + filepath.Clean(path), nil
}

func addAuthToken(dsn, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return dsn, nil
	}
	if strings.Contains(dsn, "authToken=") {
		return dsn, nil
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "authToken=" + token, nil
}

func ensureStoreDir(path string) error {
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}

func configureLocalSQLite(ctx context.Context, db *sql.DB, dsn string) error {
	if dsn == ":memory:" || !strings.HasPrefix(dsn, "file:") {
		return nil
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	var busyTimeout int
	if err := db.QueryRowContext(ctx, "PRAGMA busy_timeout=5000").Scan(&busyTimeout); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	return nil
}

// Open opens (creating if needed) the store database and runs migrations.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, apperrors.New(apperrors.KindStoreIO, "store.Open", cfg.Path, err)
	}
	if driverName != "libsql" && (strings.HasPrefix(dsn, "libsql://") || strings.HasPrefix(dsn, "https://")) {
		return nil, apperrors.New(apperrors.KindStoreIO, "store.Open", cfg.URL, fmt.Errorf("libsql URL requires cgo-enabled build"))
	}

	db, err := openDriver(dsn)
	if err != nil {
		return nil, apperrors.New(apperrors.KindStoreIO, "store.Open", dsn, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, apperrors.New(apperrors.KindStoreIO, "store.Open", dsn, fmt.Errorf("ping: %w", err))
	}
	if err := configureLocalSQLite(ctx, db, dsn); err != nil {
		_ = db.Close()
		return nil, apperrors.New(apperrors.KindStoreIO, "store.Open", dsn, err)
	}

	s := &Store{db: db}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, apperrors.New(apperrors.KindStoreSchema, "store.Open", dsn, err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for components (pkg/query) that
// need ad hoc statements beyond this package's CRUD surface.
func (s *Store) DB() *sql.DB {
	return s.db
}

// withWriteLock serializes a single write transaction against the
// process-wide advisory lock (spec §4.2, §5 "SQLite file is the only
// shared mutable resource").
func (s *Store) withWriteLock(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

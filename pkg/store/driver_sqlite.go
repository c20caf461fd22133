//go:build !cgo

package store

import (
	"database/sql"

	sqlite "modernc.org/sqlite"
)

const driverName = "sbatchman-sqlite"

func init() {
	sql.Register(driverName, &sqlite.Driver{})
}

func openDriver(dsn string) (*sql.DB, error) {
	return sql.Open(driverName, dsn)
}

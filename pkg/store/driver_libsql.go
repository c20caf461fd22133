//go:build cgo

package store

import (
	"database/sql"

	_ "github.com/tursodatabase/go-libsql"
)

const driverName = "libsql"

func openDriver(dsn string) (*sql.DB, error) {
	return sql.Open(driverName, dsn)
}

package drivers

import (
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

const LibSQLDriverName = "libsql"

type SQLiteDriver struct {
	db *bun.DB
}

// NewSQLiteDriver opens a local sqlite file through sqliteshim.
func NewSQLiteDriver(dsn string) (*SQLiteDriver, error) {
	return openSQLite(sqliteshim.ShimName, dsn)
}

// NewLibSQLDriver opens a remote libsql (Turso) database.
func NewLibSQLDriver(dsn string) (*SQLiteDriver, error) {
	return openSQLite(LibSQLDriverName, dsn)
}

func openSQLite(name, dsn string) (*SQLiteDriver, error) {
	sqldb, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", name, err)
	}

	if name == sqliteshim.ShimName {
		// sqlite allows a single writer.
		sqldb.SetMaxOpenConns(1)
	}

	return &SQLiteDriver{db: bun.NewDB(sqldb, sqlitedialect.New())}, nil
}

func (d *SQLiteDriver) GetDB() *bun.DB {
	return d.db
}

func (d *SQLiteDriver) Close() error {
	return d.db.Close()
}

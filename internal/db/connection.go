package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cozy-creator/bg-remover/internal/config"
	"github.com/cozy-creator/bg-remover/internal/db/drivers"
	"github.com/cozy-creator/bg-remover/internal/db/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/extra/bundebug"
)

func NewConnection(ctx context.Context, cfg *config.Config) (drivers.Driver, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("database config is not set")
	}

	var (
		driver drivers.Driver
		err    error
	)
	switch cfg.DB.Driver {
	case "sqlite":
		if err := ensureSQLiteDir(cfg.DB.DSN); err != nil {
			return nil, err
		}
		driver, err = drivers.NewSQLiteDriver(cfg.DB.DSN)
	case "libsql":
		driver, err = drivers.NewLibSQLDriver(cfg.DB.DSN)
	case "pg":
		driver, err = drivers.NewPGDriver(cfg.DB.DSN)
	default:
		return nil, fmt.Errorf("invalid database driver: %s", cfg.DB.Driver)
	}
	if err != nil {
		return nil, err
	}

	db := driver.GetDB()
	db.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(cfg.DB.Debug),
		bundebug.FromEnv("BUNDEBUG"),
	))

	if err := db.PingContext(ctx); err != nil {
		_ = driver.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return driver, nil
}

// CreateTables creates every model table that does not exist yet.
func CreateTables(ctx context.Context, db *bun.DB) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, table := range models.Tables() {
			if _, err := tx.NewCreateTable().
				Model(table).
				IfNotExists().
				Exec(ctx); err != nil {
				return fmt.Errorf("failed to create table: %w", err)
			}
		}
		return nil
	})
}

func ensureSQLiteDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}

	return os.MkdirAll(filepath.Dir(path), os.ModePerm)
}

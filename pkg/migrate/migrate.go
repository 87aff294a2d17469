package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/stockroom-backend/pkg/config"
	"github.com/angelmondragon/stockroom-backend/pkg/migrate/migrations"
)

// Source resolves the goose dialect and embedded migration set for a driver.
func Source(driver string) (string, fs.FS) {
	if driver == config.DBDriverSQLite {
		return "sqlite3", migrations.SQLite()
	}
	return "postgres", migrations.Postgres()
}

// withGoose points goose at the embedded set for driver for the duration of fn.
func withGoose(db *sql.DB, driver string, fn func() error) error {
	if db == nil {
		return errors.New("db is required")
	}
	dialect, fsys := Source(driver)
	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return fn()
}

// Run executes a goose command (up, down, status, ...) against the embedded
// migrations. Status output goes to stdout.
func Run(ctx context.Context, db *sql.DB, driver string, command string, args ...string) error {
	return withGoose(db, driver, func() error {
		if err := goose.RunContext(ctx, command, db, ".", args...); err != nil {
			return fmt.Errorf("goose %s: %w", command, err)
		}
		return nil
	})
}

// MigrateToVersion moves the schema up or down until it sits at target.
func MigrateToVersion(ctx context.Context, db *sql.DB, driver string, target string) error {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (want YYYYMMDDHHMMSS): %w", target, err)
	}
	return withGoose(db, driver, func() error {
		current, err := goose.GetDBVersionContext(ctx, db)
		if err != nil {
			return fmt.Errorf("get db version: %w", err)
		}
		switch {
		case current < version:
			err = goose.UpToContext(ctx, db, ".", version)
		case current > version:
			err = goose.DownToContext(ctx, db, ".", version)
		}
		if err != nil {
			return fmt.Errorf("goose migrate %d -> %d: %w", current, version, err)
		}
		return nil
	})
}

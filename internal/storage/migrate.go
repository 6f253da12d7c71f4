// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies all pending up migrations to the database at path.
// It uses its own connection, which the migrator closes when done.
func Migrate(path string, logger *slog.Logger) error {
	raw, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("migration: failed to open database: %w", err)
	}

	driver, err := migratesqlite.WithInstance(raw, &migratesqlite.Config{})
	if err != nil {
		raw.Close()
		return fmt.Errorf("migration: failed to initialize driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		raw.Close()
		return fmt.Errorf("migration: failed to read embedded migrations: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		raw.Close()
		return fmt.Errorf("migration: failed to initialize: %w", err)
	}
	defer func() {
		sourceErr, dbErr := migrator.Close()
		if sourceErr != nil {
			logger.Error("migration_source_close_failed", slog.Any("error", sourceErr))
		}
		if dbErr != nil {
			logger.Error("migration_db_close_failed", slog.Any("error", dbErr))
		}
	}()
	migrator.Log = &migrateLogger{logger: logger}

	current, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migration: failed to get current version: %w", err)
	}
	if dirty {
		return fmt.Errorf("migration: database is dirty at version %d (manual intervention required)", current)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("migration_up_to_date", slog.Int("version", int(current)))
			return nil
		}
		return fmt.Errorf("migration: up failed: %w", err)
	}

	next, _, _ := migrator.Version()
	logger.Info("migration_applied",
		slog.Int("from_version", int(current)),
		slog.Int("to_version", int(next)),
	)
	return nil
}

// SchemaVersion reports the applied migration version of the database at path.
func SchemaVersion(path string) (uint, error) {
	raw, err := sql.Open("sqlite", path)
	if err != nil {
		return 0, err
	}
	driver, err := migratesqlite.WithInstance(raw, &migratesqlite.Config{})
	if err != nil {
		raw.Close()
		return 0, err
	}
	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		raw.Close()
		return 0, err
	}
	migrator, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		raw.Close()
		return 0, err
	}
	defer migrator.Close()

	version, _, err := migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	return version, err
}

// migrateLogger adapts golang-migrate's logger interface to slog.
type migrateLogger struct {
	logger  *slog.Logger
	verbose bool
}

// Printf implements migrate.Logger.
func (l *migrateLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Verbose implements migrate.Logger.
func (l *migrateLogger) Verbose() bool {
	return l.verbose
}

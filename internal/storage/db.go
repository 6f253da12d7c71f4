// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrDatabaseError = errors.New("database error")
	ErrInvalidPath   = errors.New("invalid database path")
)

// =============================================================================
// OPEN
// =============================================================================

// Open migrates and opens the database at path.
func Open(ctx context.Context, path string, logger *slog.Logger) (*sqlx.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" || path == ":memory:" {
		return nil, fmt.Errorf("%w: %q (a file path is required)", ErrInvalidPath, path)
	}

	// Create database directory if needed
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	if err := Migrate(path, logger); err != nil {
		return nil, err
	}

	raw, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrDatabaseError, err)
	}

	// SQLite only supports one writer at a time, so limit connections
	raw.SetMaxOpenConns(1)
	raw.SetMaxIdleConns(1)
	raw.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := raw.ExecContext(ctx, pragma); err != nil {
			raw.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := raw.PingContext(ctx); err != nil {
		raw.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrDatabaseError, err)
	}

	// modernc registers as "sqlite"; sqlx only knows the bind style under
	// the mattn name.
	db := sqlx.NewDb(raw, "sqlite3")

	// The database holds password hashes; keep it private to the user.
	if err := os.Chmod(path, 0600); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("database_chmod_failed", slog.String("path", path), slog.Any("error", err))
	}

	logger.Debug("database_opened", slog.String("path", path))
	return db, nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLiteBackend stores the session in the session_store table of the local
// database (see storage.Open).
type SQLiteBackend struct {
	db    *sqlx.DB
	slot  string
	clock Clock
}

// NewSQLiteBackend returns a backend using slot as the row key.
func NewSQLiteBackend(db *sqlx.DB, slot string) *SQLiteBackend {
	return &SQLiteBackend{db: db, slot: slot, clock: SystemClock{}}
}

// Read implements Backend. Rows past their storage expiry read as empty.
func (b *SQLiteBackend) Read(ctx context.Context) ([]byte, error) {
	var row struct {
		Payload   []byte `db:"payload"`
		ExpiresAt int64  `db:"expires_at"`
	}
	err := b.db.GetContext(ctx, &row, "SELECT payload, expires_at FROM session_store WHERE slot = ?", b.slot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if b.clock.Now().Unix() > row.ExpiresAt {
		return nil, b.Delete(ctx)
	}
	return row.Payload, nil
}

// Write implements Backend.
func (b *SQLiteBackend) Write(ctx context.Context, data []byte, ttl time.Duration) error {
	expires := b.clock.Now().Add(ttl).Unix()
	_, err := b.db.ExecContext(ctx, `INSERT INTO session_store (slot, payload, expires_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(slot) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at, updated_at = CURRENT_TIMESTAMP`,
		b.slot, data, expires)
	return err
}

// Delete implements Backend.
func (b *SQLiteBackend) Delete(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, "DELETE FROM session_store WHERE slot = ?", b.slot)
	return err
}

// Name implements Backend.
func (b *SQLiteBackend) Name() string { return "sqlite" }

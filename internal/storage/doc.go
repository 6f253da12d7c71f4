// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage owns the local SQLite database of educagestao.
//
// The database holds the local user directory (table usuarios) and, when the
// sqlite session backend is selected, the durable session slot. The schema is
// managed by embedded golang-migrate migrations that run on every Open.
//
// # Usage
//
//	db, err := storage.Open(ctx, "~/.educagestao/educagestao.db", logger)
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
// The returned *sqlx.DB is limited to a single connection: SQLite allows one
// writer at a time and every caller in this process shares the handle.
package storage

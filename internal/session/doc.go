// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the single active login session of educagestao.
//
// # Lifetimes
//
// A remembered login is a persistent session: it lives 7 days in the durable
// tier and has no inactivity timeout. Any other login is an ephemeral
// session: it lives at most 2 hours in the ephemeral tier and ends after
// 2 minutes without user activity.
//
// # Key Types
//
//   - Session: the stored record (identity, role, capability tokens, expiry)
//   - Store: save / load / clear over a durable and an ephemeral tier
//   - Manager: the login state machine and its inactivity watchdog
//
// # Usage
//
//	store := session.NewTieredStore(session.NewFileBackend(path), session.NewMemoryBackend())
//	mgr := session.NewManager(verifier, store)
//	defer mgr.Close()
//
//	sess, err := mgr.Login(ctx, session.LoginRequest{Email: e, Password: p, Remember: true})
//	...
//	mgr.RecordActivity() // on every key press, click or scroll
//	if s, ok := mgr.Current(ctx); ok { ... }
//
// Manager.Current is the only validity check: it re-reads the store, purges
// expired or corrupt records and reports the live session, if any.
package session

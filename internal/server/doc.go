// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the local school API started by `educagestao serve`.
//
// Endpoints:
//   - GET  /health                          - Health check
//   - POST /api/auth/login                  - Credential check used by the remote verifier
//   - GET  /api/roles                       - Role catalog
//   - GET  /api/roles/{role}                - One role, by English name or cargo code
//   - GET  /api/me/permissions              - Tokens granted to the caller (RequireAuth)
//   - GET  /api/permissions/{token}/check   - 200 when granted, 403 otherwise (RequirePermission)
//
// Hiding an element in the terminal UI is a convenience, not enforcement.
// Handlers that perform a guarded action must wrap it in RequirePermission.
package server

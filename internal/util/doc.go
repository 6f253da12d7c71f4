// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the educagestao packages.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - LockFile: advisory inter-process lock around a file
//
// String Utilities:
//   - TruncateWidth: display-width aware truncation with ellipsis
//   - PadRight: display-width aware padding
//
// Durations:
//   - FormatDuration: compact "1h05m" style durations
package util

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-interactive
// commands of educagestao.
//
// # Key Types
//
//   - Command: Enumeration of the available commands
//   - Args: Parsed global flags plus the raw arguments of the command
//   - App: The wired components (config, logger, directory, session
//     manager, permission gate) shared by commands and the terminal UI
//
// # Usage
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdLogin:
//	    err = cli.HandleLogin(args)
//	case cli.CmdCan:
//	    err = cli.HandleCan(args)
//	// ... other commands
//	}
//
// # Commands
//
//   - login, logout, status: session lifecycle and introspection
//   - can: capability check with exit codes for scripts
//   - roles: role catalog
//   - users: local directory administration (superuser only)
//   - serve: local school API
//
// Every command supports --json, which prints a JSONResponse envelope.
package cli

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// can_cmd.go - Capability check for scripts.
//
// Command: can <token|action:resource>
//
// Exits 0 when the current session grants the capability and 4 otherwise,
// so shell scripts can branch on it:
//
//	educagestao can create_notas && ./lancar-notas.sh

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/educagestao/educagestao-tui/internal/security"
)

// HandleCan handles the "can" command.
func HandleCan(args Args) error {
	ctx := context.Background()
	app, err := OpenApp(ctx, args)
	if err != nil {
		return err
	}
	defer app.Close()
	return runCan(ctx, app, args, os.Stdout)
}

func runCan(ctx context.Context, app *App, args Args, out io.Writer) error {
	ap := NewArgParser(args.Raw)
	tag := ap.Subcommand()
	if tag == "" {
		return ErrMissingArgument("permission", "educagestao can create_notas")
	}
	token, ok := security.ParsePermission(tag)
	if !ok {
		return &NotFoundError{Resource: "permission", ID: tag}
	}

	allowed := app.Gate.HasPermission(token)
	grant, signedIn := app.Manager.CurrentGrant()

	data := CanData{Permission: string(token), Allowed: allowed}
	if signedIn {
		data.Role = grant.Role.String()
	}

	if args.JSON {
		if err := NewJSONResponse("can", data).Write(out); err != nil {
			return err
		}
	} else if !args.Quiet {
		if allowed {
			fmt.Fprintf(out, "%s %s\n", RenderStatus("granted"), token)
		} else {
			fmt.Fprintf(out, "%s %s\n", RenderStatus("denied"), token)
		}
	}

	if !allowed {
		return &ReportedError{Err: &PermissionError{
			Action:     "can",
			UserID:     grant.UserID,
			Permission: string(token),
		}}
	}
	return nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
)

// HandleLogout handles the "logout" command. Signing out when nobody is
// signed in is not an error.
func HandleLogout(args Args) error {
	ctx := context.Background()
	app, err := OpenApp(ctx, args)
	if err != nil {
		return err
	}
	defer app.Close()
	return runLogout(ctx, app, args, os.Stdout)
}

func runLogout(ctx context.Context, app *App, args Args, out io.Writer) error {
	_, wasSignedIn := app.Manager.Current(ctx)
	if err := app.Manager.Logout(ctx); err != nil {
		return NewCommandError("logout", "clear", "could not clear the stored session", err)
	}

	if args.JSON {
		return NewJSONResponse("logout", LogoutData{WasSignedIn: wasSignedIn}).Write(out)
	}
	if wasSignedIn {
		fmt.Fprintf(out, "%s Signed out.\n", SuccessStyle.Render("[OK]"))
	} else if !args.Quiet {
		fmt.Fprintln(out, DimStyle.Render("No active session."))
	}
	return nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// login_cmd.go - Sign in from the command line.
//
// Command: login [--email E] [--remember] [--access admin|professional]
//
// A remembered login is written to the durable tier and is picked up by the
// terminal UI and later commands. Without --remember the session lives in
// process memory only and ends when the command exits.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/educagestao/educagestao-tui/internal/security"
	"github.com/educagestao/educagestao-tui/internal/session"
)

// HandleLogin handles the "login" command.
func HandleLogin(args Args) error {
	ctx := context.Background()
	app, err := OpenApp(ctx, args)
	if err != nil {
		return err
	}
	defer app.Close()
	return runLogin(ctx, app, args, os.Stdout, defaultPrompter())
}

func runLogin(ctx context.Context, app *App, args Args, out io.Writer, p Prompter) error {
	ap := NewArgParser(args.Raw, "remember", "r")
	remember := ap.BoolFlag("remember", "r")

	accessName := ap.FlagOrDefault("access", app.Config.Auth.AccessMode)
	mode, err := security.ParseAccessMode(accessName)
	if err != nil {
		return NewValidationErrorWithExample("access", accessName,
			"unknown access type", "educagestao login --access professional")
	}

	email := ap.Flag("email", "e")
	if email == "" {
		if email, err = p.Line("Email: "); err != nil {
			return err
		}
	}
	password, err := p.Password("Password: ")
	if err != nil {
		return err
	}

	sess, err := app.Manager.Login(ctx, session.LoginRequest{
		Email:      email,
		Password:   password,
		Remember:   remember,
		AccessMode: mode,
	})
	if err != nil {
		var mismatch *security.RoleMismatchError
		if errors.As(err, &mismatch) {
			return fmt.Errorf("%w\nRun again with --access %s", err, suggestedAccess(mismatch.Role))
		}
		return err
	}

	info := sess.Info(app.Now())
	if args.JSON {
		return NewJSONResponse("login", LoginData{Session: info, ProcessOnly: !remember}).Write(out)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s Signed in as %s (%s)\n",
		SuccessStyle.Render("[OK]"), info.Name, RoleStyle(sess.Role).Render(info.RoleTitle))
	if args.Quiet {
		return nil
	}
	fmt.Fprintf(out, "  %s%s\n", RenderLabel("Expires:"), info.RemainingAt)
	fmt.Fprintf(out, "  %s%s\n", RenderLabel("Tier:"), info.Tier)
	if !remember {
		fmt.Fprintln(out)
		fmt.Fprintln(out, WarningStyle.Render("This session was not remembered and ends when this command exits."))
		fmt.Fprintln(out, DimStyle.Render("Use --remember to keep it for 7 days, or sign in from the terminal UI."))
	}
	fmt.Fprintln(out)
	return nil
}

// suggestedAccess names the access type that fits role.
func suggestedAccess(role security.Role) string {
	if role.IsSuperuser() {
		return security.AccessAdmin.String()
	}
	return security.AccessProfessional.String()
}

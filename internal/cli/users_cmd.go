// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// users_cmd.go - Local user directory administration.
//
// Command: users [subcommand]
//
// Subcommands:
//   list (default)      List accounts
//   add                 Add an account (password prompted twice)
//   disable EMAIL       Deactivate an account (asks for confirmation)
//   enable EMAIL        Reactivate an account
//
// Every subcommand requires a remembered administrator or director
// session: sign in with `educagestao login --remember` first. An empty
// directory is seeded with admin@escola.com / admin123.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/educagestao/educagestao-tui/internal/credentials"
	"github.com/educagestao/educagestao-tui/internal/security"
	"github.com/educagestao/educagestao-tui/internal/util"
)

const usersUsage = `Usage:
  educagestao users list
  educagestao users add --name NAME --email EMAIL --role ROLE [--cpf CPF] [--phone PHONE]
  educagestao users disable EMAIL [--confirm]
  educagestao users enable EMAIL`

// HandleUsers handles the "users" command.
func HandleUsers(args Args) error {
	ctx := context.Background()
	app, err := OpenApp(ctx, args)
	if err != nil {
		return err
	}
	defer app.Close()
	return runUsers(ctx, app, args, os.Stdout, defaultPrompter(), IsTTY())
}

func runUsers(ctx context.Context, app *App, args Args, out io.Writer, p Prompter, interactive bool) error {
	ap := NewArgParser(args.Raw, "confirm", "y")
	sub := ap.Subcommand()
	if sub == "" {
		sub = "list"
	}

	switch sub {
	case "list", "ls":
		if err := requireSuperuser(app, "users list"); err != nil {
			return err
		}
		return usersList(ctx, app, args, out)
	case "add":
		if err := requireSuperuser(app, "users add"); err != nil {
			return err
		}
		return usersAdd(ctx, app, args, ap, out, p)
	case "disable", "enable":
		if err := requireSuperuser(app, "users "+sub); err != nil {
			return err
		}
		return usersSetStatus(ctx, app, args, ap, sub, out, p, interactive)
	default:
		return NewValidationErrorWithExample("subcommand", sub, "unknown users subcommand", usersUsage)
	}
}

// requireSuperuser checks the live session through the permission gate.
func requireSuperuser(app *App, action string) error {
	if app.Gate.IsSuperuser() {
		return nil
	}
	grant, _ := app.Manager.CurrentGrant()
	return &PermissionError{Action: action, UserID: grant.UserID, Permission: string(security.PermAll)}
}

func usersList(ctx context.Context, app *App, args Args, out io.Writer) error {
	accounts, err := app.Directory.List(ctx)
	if err != nil {
		return NewCommandError("users", "list", "could not read the user directory", err)
	}
	if args.JSON {
		return NewJSONResponse("users", UsersData{Users: accounts}).Write(out)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, TitleStyle.Render(fmt.Sprintf("Users (%d)", len(accounts))))
	for _, a := range accounts {
		fmt.Fprintf(out, "  %s %s %s %s %s\n",
			DimStyle.Render(util.PadRight(a.ID, 4)),
			util.PadRight(util.TruncateWidth(a.Name, 24), 24),
			util.PadRight(util.TruncateWidth(a.Email, 30), 30),
			RoleStyle(a.Role).Render(util.PadRight(a.Role.DisplayName(), 16)),
			RenderStatus(string(a.Status)))
	}
	fmt.Fprintln(out)
	return nil
}

func usersAdd(ctx context.Context, app *App, args Args, ap *ArgParser, out io.Writer, p Prompter) error {
	nu := credentials.NewUser{
		Name:  ap.Flag("name", "n"),
		Email: ap.Flag("email", "e"),
		CPF:   ap.Flag("cpf"),
		Phone: ap.Flag("phone", "telefone"),
		Role:  ap.Flag("role", "cargo"),
	}
	if nu.Email == "" || nu.Name == "" || nu.Role == "" {
		return ErrMissingArgument("name, email and role", usersUsage)
	}

	password, err := p.Password("Password for " + nu.Email + ": ")
	if err != nil {
		return err
	}
	again, err := p.Password("Repeat password: ")
	if err != nil {
		return err
	}
	if password != again {
		return NewValidationError("password", "", "the passwords do not match")
	}
	nu.Password = password

	if err := nu.Validate(); err != nil {
		return NewValidationError("user", "", err.Error())
	}
	user, err := app.Directory.Add(ctx, nu)
	if err != nil {
		return NewCommandError("users", "add", "could not add user", err)
	}

	if args.JSON {
		return NewJSONResponse("users", user).Write(out)
	}
	fmt.Fprintf(out, "%s Added %s (%s) as %s\n",
		SuccessStyle.Render("[OK]"), user.Name, user.Email, RoleStyle(user.Role).Render(user.Role.DisplayName()))
	return nil
}

func usersSetStatus(ctx context.Context, app *App, args Args, ap *ArgParser, sub string, out io.Writer, p Prompter, interactive bool) error {
	email := credentials.NormalizeEmail(ap.Positional(1))
	if email == "" {
		return ErrMissingArgument("email", usersUsage)
	}

	status := credentials.StatusActive
	if sub == "disable" {
		status = credentials.StatusInactive
		if sess, ok := app.Manager.Current(ctx); ok && sess.Email == email {
			return NewValidationError("email", email, "you cannot disable your own account")
		}
		confirmed, err := RequireConfirmation(out, p, "disable "+email,
			[][2]string{{"Account", email}, {"Effect", "cannot sign in until enabled"}},
			ConfirmationOptions{ConfirmFlag: ap.BoolFlag("confirm", "y"), JSONMode: args.JSON, Interactive: interactive})
		if err != nil {
			return err
		}
		if !confirmed {
			ShowCancellationMessage(out)
			return nil
		}
	}

	if err := app.Directory.SetStatus(ctx, email, status); err != nil {
		return NewCommandError("users", sub, "could not update "+email, err)
	}

	if args.JSON {
		return NewJSONResponse("users", map[string]string{"email": email, "status": string(status)}).Write(out)
	}
	fmt.Fprintf(out, "%s %s is now %s\n", RenderStatus(string(status)), email, status)
	return nil
}

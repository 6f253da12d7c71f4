// educagestao - school management sign-in and permissions in the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/educagestao/educagestao-tui/internal/cli"
	"github.com/educagestao/educagestao-tui/internal/security"
	"github.com/educagestao/educagestao-tui/internal/ui/portal"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	var err error
	switch cmd {
	case cli.CmdTUI:
		err = runTUI(args)
	case cli.CmdLogin:
		err = cli.HandleLogin(args)
	case cli.CmdLogout:
		err = cli.HandleLogout(args)
	case cli.CmdStatus:
		err = cli.HandleStatus(args)
	case cli.CmdCan:
		err = cli.HandleCan(args)
	case cli.CmdRoles:
		err = cli.HandleRoles(args)
	case cli.CmdUsers:
		err = cli.HandleUsers(args)
	case cli.CmdServe:
		err = cli.HandleServe(args)
	case cli.CmdVersion:
		err = cli.HandleVersion(args)
	case cli.CmdHelp:
		err = cli.HandleHelp()
	default:
		err = cli.HandleUnknown(args)
	}

	if err != nil {
		cli.DisplayError(cmd.String(), err, args.JSON)
		os.Exit(cli.GetExitCode(err))
	}
}

// runTUI opens the app and runs the terminal UI until the user quits.
func runTUI(args cli.Args) error {
	if err := cli.RequiresTTY("start the terminal UI"); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cli.OpenApp(ctx, args)
	if err != nil {
		return err
	}
	defer app.Close()

	// The config value was validated on load.
	mode, _ := security.ParseAccessMode(app.Config.Auth.AccessMode)

	return portal.Run(ctx, portal.Options{
		Sessions:    app.Manager,
		Gate:        app.Gate,
		AccessMode:  mode,
		SessionFile: app.SessionFile(),
		Now:         app.Now,
		Logger:      app.Logger,
	})
}

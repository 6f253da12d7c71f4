// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve_cmd.go - Runs the local school API until interrupted.
//
// Command: serve [--addr ADDR]
//
// The API verifies logins against the local directory (plus the demo
// accounts when enabled), so a terminal client configured with
// verifier = "remote" can point at it.

package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/educagestao/educagestao-tui/internal/server"
)

// HandleServe handles the "serve" command.
func HandleServe(args Args) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := OpenApp(ctx, args)
	if err != nil {
		return err
	}
	defer app.Close()

	ap := NewArgParser(args.Raw)
	addr := ap.FlagOrDefault("addr", app.Config.Server.ListenAddr)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return NewCommandError("serve", "listen", "could not listen on "+addr, err)
	}

	srv := newServer(app)
	if !args.Quiet {
		fmt.Fprintf(os.Stderr, "%s Serving the school API on http://%s (Ctrl+C to stop)\n",
			SuccessStyle.Render("[OK]"), ln.Addr())
	}
	return srv.Serve(ctx, ln)
}

func newServer(app *App) *server.Server {
	return server.New(app.ServerVerifier(),
		server.WithLogger(app.Logger),
		server.WithReadTimeout(app.Config.ReadTimeout()))
}

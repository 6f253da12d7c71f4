// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status_cmd.go - Session introspection.
//
// Command: status [--raw]
//
// Shows who is signed in, when the session started and ends, its storage
// tier and the granted capability tokens. --raw prints the stored record,
// syntax highlighted on a color terminal.

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/dustin/go-humanize"

	"github.com/educagestao/educagestao-tui/internal/security"
	"github.com/educagestao/educagestao-tui/internal/session"
)

// HandleStatus handles the "status" command.
func HandleStatus(args Args) error {
	ctx := context.Background()
	app, err := OpenApp(ctx, args)
	if err != nil {
		return err
	}
	defer app.Close()
	return runStatus(ctx, app, args, os.Stdout, ColorsEnabled())
}

func runStatus(ctx context.Context, app *App, args Args, out io.Writer, color bool) error {
	ap := NewArgParser(args.Raw, "raw")
	sess, ok := app.Manager.Current(ctx)

	if ap.BoolFlag("raw") {
		if !ok {
			return session.ErrNoSession
		}
		data, err := json.MarshalIndent(sess, "", "  ")
		if err != nil {
			return err
		}
		if color {
			data = []byte(highlightJSON(string(data)))
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	if args.JSON {
		status := StatusData{Authenticated: ok, Backend: app.Store.Durable().Name()}
		if ok {
			info := sess.Info(app.Now())
			status.Session = &info
		}
		return NewJSONResponse("status", status).Write(out)
	}

	if !ok {
		fmt.Fprintln(out, "Not signed in.")
		if !args.Quiet {
			fmt.Fprintln(out, DimStyle.Render("Run 'educagestao login' or start the terminal UI."))
		}
		return nil
	}

	info := sess.Info(app.Now())
	fmt.Fprintln(out)
	fmt.Fprintln(out, TitleStyle.Render("Session"))
	fmt.Fprintln(out, RenderSeparator(40))
	row := func(label, value string) {
		fmt.Fprintf(out, "  %s%s\n", RenderLabel(label+":"), ValueStyle.Render(value))
	}
	row("Name", orDash(info.Name))
	row("Email", info.Email)
	fmt.Fprintf(out, "  %s%s\n", RenderLabel("Role:"), RoleStyle(sess.Role).Render(info.RoleTitle))
	row("Signed in", fmt.Sprintf("%s (%s)", humanize.Time(info.LoginAt), info.LoginAt.Local().Format("2006-01-02 15:04")))
	row("Expires", fmt.Sprintf("%s (%s)", info.RemainingAt, info.ExpiresAt.Local().Format("2006-01-02 15:04")))
	row("Tier", fmt.Sprintf("%s (%s)", info.Tier, app.Store.Durable().Name()))
	if info.Inactivity != "" {
		row("Inactivity limit", info.Inactivity)
	}

	fmt.Fprintln(out, SectionStyle.Render("Permissions"))
	if len(info.Permissions) == 1 && info.Permissions[0] == string(security.PermAll) {
		fmt.Fprintln(out, "  "+SuccessStyle.Render(string(security.PermAll))+DimStyle.Render(" (every capability)"))
	} else {
		fmt.Fprintln(out, "  "+strings.Join(info.Permissions, ", "))
	}
	fmt.Fprintln(out)
	return nil
}

// highlightJSON colors JSON for a 256-color terminal. It returns the input
// unchanged when highlighting fails.
func highlightJSON(src string) string {
	lexer := lexers.Get("json")
	if lexer == nil {
		return src
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, src)
	if err != nil {
		return src
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return src
	}
	return buf.String()
}

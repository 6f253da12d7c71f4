// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// roles_cmd.go - Role catalog listing.
//
// Command: roles [role] [--describe]
//
// Roles are accepted by English name or directory code
// (director/diretor, coordinator/coordenador, teacher/professor,
// secretary/secretaria, admin).

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/educagestao/educagestao-tui/internal/security"
	"github.com/educagestao/educagestao-tui/internal/util"
)

// HandleRoles handles the "roles" command. It reads only the catalog and
// needs no session.
func HandleRoles(args Args) error {
	return runRoles(args, os.Stdout, IsStdoutTTY())
}

func runRoles(args Args, out io.Writer, tty bool) error {
	ap := NewArgParser(args.Raw, "describe", "d")
	roles := security.AllRoles()
	if name := ap.Subcommand(); name != "" {
		role := security.ParseRole(name)
		if role == security.RoleUnknown {
			return &NotFoundError{Resource: "role", ID: name}
		}
		roles = []security.Role{role}
	}

	if args.JSON {
		infos := make([]security.RoleInfo, 0, len(roles))
		for _, role := range roles {
			infos = append(infos, security.Describe(role))
		}
		return NewJSONResponse("roles", infos).Write(out)
	}

	if ap.BoolFlag("describe", "d") {
		for _, role := range roles {
			md := security.DescribeMarkdown(role)
			if tty {
				md = renderMarkdown(md)
			}
			fmt.Fprintln(out, md)
		}
		return nil
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, TitleStyle.Render("Roles"))
	for _, role := range roles {
		info := security.Describe(role)
		title := RoleStyle(role).Render(util.PadRight(info.Title, 16))
		scope := fmt.Sprintf("%d capabilities", len(info.Permissions))
		if info.Superuser {
			scope = "every capability"
		}
		fmt.Fprintf(out, "  %s %s %s\n", title,
			DimStyle.Render(util.PadRight(info.Role+" / "+info.Code, 26)), scope)
		if len(roles) == 1 {
			fmt.Fprintln(out)
			for _, h := range info.Highlights {
				fmt.Fprintln(out, "  "+h)
			}
			fmt.Fprintln(out)
			perms := make([]string, 0, len(info.Permissions))
			for _, p := range info.Permissions {
				perms = append(perms, string(p))
			}
			fmt.Fprintln(out, "  "+strings.Join(perms, ", "))
		}
	}
	fmt.Fprintln(out)
	return nil
}

// renderMarkdown renders markdown for the terminal. It returns the input
// unchanged when the renderer is unavailable.
func renderMarkdown(md string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(GetTerminalWidth()-4),
	)
	if err != nil {
		return md
	}
	rendered, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return rendered
}

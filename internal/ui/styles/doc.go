// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the educagestao
terminal UI.

# Color System (colors.go)

  - Purple - Primary accent and selections
  - Cyan - Brand color and key hints
  - Emerald - Success and granted capabilities
  - Amber - Warnings and expiry notices
  - Rose - Errors

Role badges use the color stored with each role in the catalog
(RoleColor).

# Theme (theme.go)

NewTheme detects the terminal color profile and background with termenv
and builds every lipgloss style used by the screens and components:

	theme := styles.NewTheme()
	fmt.Println(theme.Title.Render("Entrar"))
	fmt.Println(theme.RoleBadge(security.RoleTeacher))
*/
package styles

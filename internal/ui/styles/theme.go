// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/educagestao/educagestao-tui/internal/security"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER AND STATUS BAR
	// ==========================================================================

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderUser  lipgloss.Style
	StatusBar   lipgloss.Style
	ShortcutKey lipgloss.Style
	ShortcutDsc lipgloss.Style

	// ==========================================================================
	// FORMS
	// ==========================================================================

	Box          lipgloss.Style
	Title        lipgloss.Style
	Subtitle     lipgloss.Style
	Label        lipgloss.Style
	FocusedLabel lipgloss.Style
	Checkbox     lipgloss.Style

	// ==========================================================================
	// MENUS
	// ==========================================================================

	MenuItem         lipgloss.Style
	MenuItemSelected lipgloss.Style
	MenuItemDisabled lipgloss.Style
	ActionGranted    lipgloss.Style
	ActionDenied     lipgloss.Style

	// ==========================================================================
	// NOTICES
	// ==========================================================================

	ErrorToast   lipgloss.Style
	StatusToast  lipgloss.Style
	NoticeBox    lipgloss.Style
	NoticeTitle  lipgloss.Style
	Help         lipgloss.Style
	SuccessStyle lipgloss.Style
	WarningStyle lipgloss.Style
	ErrorStyle   lipgloss.Style
}

// NewTheme creates a new theme with all styles configured.
func NewTheme() *Theme {
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.HeaderUser = lipgloss.NewStyle().
		Foreground(TextSecondary)
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)
	t.ShortcutKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.ShortcutDsc = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Box = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(1, 3)
	t.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple).
		MarginBottom(1)
	t.Subtitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)
	t.Label = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Width(12)
	t.FocusedLabel = t.Label.
		Foreground(Cyan).
		Bold(true)
	t.Checkbox = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.MenuItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)
	t.MenuItemSelected = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)
	t.MenuItemDisabled = lipgloss.NewStyle().
		Foreground(TextMuted).
		PaddingLeft(2)
	t.ActionGranted = lipgloss.NewStyle().
		Foreground(Emerald)
	t.ActionDenied = lipgloss.NewStyle().
		Foreground(TextMuted).
		Strikethrough(true)

	t.ErrorToast = lipgloss.NewStyle().
		Background(RoseDeep).
		Foreground(TextInverse).
		Bold(true).
		Padding(0, 2)
	t.StatusToast = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Cyan).
		Foreground(TextPrimary).
		Padding(0, 2)
	t.NoticeBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(Amber).
		Padding(1, 4).
		Align(lipgloss.Center)
	t.NoticeTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Amber)
	t.Help = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Accessibility: state is never conveyed by color alone, callers
	// prefix [OK]/[NO]/[!] markers.
	t.SuccessStyle = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.WarningStyle = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	t.ErrorStyle = lipgloss.NewStyle().Foreground(Rose).Bold(true)
}

// RoleBadge renders the display name of role on its badge color.
func (t *Theme) RoleBadge(role security.Role) string {
	return lipgloss.NewStyle().
		Background(RoleColor(role)).
		Foreground(lipgloss.Color("#FFFFFF")).
		Padding(0, 1).
		Render(role.DisplayName())
}

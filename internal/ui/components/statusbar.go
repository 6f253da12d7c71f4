// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/educagestao/educagestao-tui/internal/ui/styles"
	"github.com/educagestao/educagestao-tui/internal/util"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// Shortcut is a key hint shown on the right of the status bar.
type Shortcut struct {
	Key  string
	Desc string
}

// StatusBar shows the session tier and remaining lifetime on the left and
// key hints on the right.
type StatusBar struct {
	Width     int
	Tier      string
	Remaining time.Duration
	// Inactivity is the idle limit of an ephemeral session, or zero.
	Inactivity time.Duration
	Shortcuts  []Shortcut
	theme      *styles.Theme
}

// NewStatusBar creates a status bar for an 80 column terminal.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{Width: 80, theme: theme}
}

// View renders the status bar. Shortcuts that do not fit are dropped from
// the end.
func (s *StatusBar) View() string {
	var left string
	if s.Tier != "" {
		left = s.Tier + " | expires in " + util.FormatDuration(s.Remaining)
		if s.Inactivity > 0 {
			left += " | idle limit " + util.FormatDuration(s.Inactivity)
		}
	}

	room := s.Width - 2 - lipgloss.Width(left) - 2
	var hints []string
	used := 0
	for _, sc := range s.Shortcuts {
		hint := s.theme.ShortcutKey.Render(sc.Key) + " " + s.theme.ShortcutDsc.Render(sc.Desc)
		w := lipgloss.Width(hint) + 2
		if used+w > room {
			break
		}
		hints = append(hints, hint)
		used += w
	}
	right := strings.Join(hints, "  ")

	gap := s.Width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return s.theme.StatusBar.Width(s.Width).Render(left + strings.Repeat(" ", gap) + right)
}

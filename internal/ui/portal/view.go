// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package portal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/educagestao/educagestao-tui/internal/security"
	"github.com/educagestao/educagestao-tui/internal/session"
	"github.com/educagestao/educagestao-tui/internal/util"
)

// View renders the active screen.
func (m Model) View() string {
	if m.notice.Visible() {
		return m.notice.View(m.theme, m.width, m.height)
	}

	var body string
	switch m.screen {
	case ScreenLoading:
		body = m.theme.Subtitle.Render("Loading...")
	case ScreenAccess:
		body = m.accessView()
	case ScreenLogin:
		body = m.loginView()
	case ScreenHome:
		body = m.homeView()
	case ScreenSession:
		body = m.sessionView()
	case ScreenRole:
		body = m.role.View()
	}

	parts := []string{m.header.View(), "", body}
	if toasts := m.toasts.View(m.theme, m.width); toasts != "" {
		parts = append(parts, "", toasts)
	}
	parts = append(parts, "", m.footer())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) footer() string {
	switch m.screen {
	case ScreenAccess:
		return m.help.View(accessHelp{m.keys})
	case ScreenLogin:
		return m.help.View(loginHelp{m.keys})
	case ScreenHome, ScreenSession, ScreenRole:
		if m.sess != nil {
			info := m.sess.Info(m.now)
			m.status.Tier = info.Tier
			m.status.Remaining = info.Remaining
			m.status.Inactivity = 0
			if !m.sess.Persistent {
				m.status.Inactivity = session.InactivityTimeout
			}
		}
		m.status.Shortcuts = shortcuts(m.keys.Session, m.keys.Role, m.keys.Logout, m.keys.Back, m.keys.Quit)
		return m.status.View()
	}
	return ""
}

// =============================================================================
// SIGN-IN SCREENS
// =============================================================================

func accessLabel(mode security.AccessMode) string {
	switch mode {
	case security.AccessAdmin:
		return "Administrative access"
	case security.AccessProfessional:
		return "Education professional access"
	default:
		return "Any role"
	}
}

func (m Model) accessView() string {
	var b strings.Builder
	b.WriteString(m.theme.Title.Render("How do you want to sign in?"))
	b.WriteString("\n")
	for i, mode := range accessChoices {
		label := accessLabel(mode)
		if i == m.accessCursor {
			b.WriteString(m.theme.MenuItemSelected.Render("> " + label))
		} else {
			b.WriteString(m.theme.MenuItem.Render(label))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.theme.Subtitle.Render("Administrators and directors use the administrative access."))
	return m.theme.Box.Render(b.String())
}

func (m Model) loginView() string {
	label := func(text string, f int) string {
		if m.focus == f {
			return m.theme.FocusedLabel.Render(text)
		}
		return m.theme.Label.Render(text)
	}
	box := "[ ]"
	if m.remember {
		box = "[x]"
	}

	var b strings.Builder
	b.WriteString(m.theme.Title.Render("Entrar"))
	b.WriteString("\n")
	b.WriteString(m.theme.Subtitle.Render(accessLabel(m.access)))
	b.WriteString("\n\n")
	b.WriteString(label("Email", focusEmail) + m.email.View() + "\n")
	b.WriteString(label("Password", focusPassword) + m.password.View() + "\n\n")
	b.WriteString(label("", focusRemember) + m.theme.Checkbox.Render(box+" Remember me for 7 days") + "\n")
	if m.submitting {
		b.WriteString("\n" + m.spinner.View() + " Signing in...")
	}
	return m.theme.Box.Render(b.String())
}

// =============================================================================
// SIGNED-IN SCREENS
// =============================================================================

func (m Model) homeView() string {
	if m.sess == nil {
		return ""
	}
	var menu strings.Builder
	menu.WriteString(m.theme.Title.Render("Áreas"))
	menu.WriteString("\n")
	if len(m.menu) == 0 {
		menu.WriteString(m.theme.MenuItemDisabled.Render("Nothing to show for this role."))
	}
	for i, item := range m.menu {
		if i == m.menuCursor {
			menu.WriteString(m.theme.MenuItemSelected.Render("> " + item.Title))
		} else {
			menu.WriteString(m.theme.MenuItem.Render(item.Title))
		}
		menu.WriteString("\n")
	}

	left := m.theme.Box.Width(28).Render(strings.TrimRight(menu.String(), "\n"))
	if m.menuCursor >= len(m.menu) {
		return left
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", m.areaView(m.menu[m.menuCursor]))
}

// areaView lists the record actions of item. Actions are marked, not only
// colored.
func (m Model) areaView(item menuItem) string {
	var b strings.Builder
	b.WriteString(m.theme.Title.Render(item.Title))
	b.WriteString("\n")
	if len(item.Actions) == 0 {
		b.WriteString(m.theme.Subtitle.Render("Overview of the school."))
		return m.theme.Box.Render(b.String())
	}
	b.WriteString(m.theme.ActionGranted.Render("[OK] view") + "\n")
	for _, action := range recordActions {
		if item.Actions[action] {
			b.WriteString(m.theme.ActionGranted.Render("[OK] "+string(action)) + "\n")
		} else {
			b.WriteString(m.theme.ActionDenied.Render("[NO] "+string(action)) + "\n")
		}
	}
	return m.theme.Box.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) sessionView() string {
	if m.sess == nil {
		return ""
	}
	info := m.sess.Info(m.now)
	row := func(label, value string) string {
		return m.theme.Label.Width(18).Render(label) + value + "\n"
	}

	var b strings.Builder
	b.WriteString(m.theme.Title.Render("Session"))
	b.WriteString("\n")
	b.WriteString(row("Name", util.TruncateWidth(info.Name, m.width-30)))
	b.WriteString(row("Email", info.Email))
	b.WriteString(row("Role", m.theme.RoleBadge(m.sess.Role)))
	b.WriteString(row("Signed in", fmt.Sprintf("%s (%s)",
		info.LoginAt.Local().Format("02/01/2006 15:04"), humanize.RelTime(info.LoginAt, m.now, "ago", "from now"))))
	b.WriteString(row("Expires", info.ExpiresAt.Local().Format("02/01/2006 15:04")))
	b.WriteString(row("Time remaining", util.FormatDuration(info.Remaining)))
	b.WriteString(row("Tier", info.Tier))
	if info.Inactivity != "" {
		b.WriteString(row("Inactivity limit", info.Inactivity))
	}

	perms := strings.Join(info.Permissions, ", ")
	if m.sess.Grant().Allows(security.PermAll) {
		perms = string(security.PermAll) + " (every capability)"
	}
	b.WriteString("\n")
	b.WriteString(m.theme.Label.Render("Capabilities"))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Width(m.width - 10).Render(perms))
	return m.theme.Box.Render(b.String())
}

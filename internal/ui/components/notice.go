// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/educagestao/educagestao-tui/internal/ui/styles"
)

// =============================================================================
// NOTICE OVERLAY
// =============================================================================

// NoticeKind selects the text of the notice overlay.
type NoticeKind int

const (
	NoticeNone NoticeKind = iota
	// NoticeSigningOut is shown between the logout request and the
	// destruction of the session.
	NoticeSigningOut
	// NoticeInactivity is shown during the grace period after the
	// inactivity deadline.
	NoticeInactivity
)

// SigningOutDelay is how long the sign-out notice is shown before the
// session is destroyed.
const SigningOutDelay = 1500 * time.Millisecond

// Title returns the headline of the notice.
func (k NoticeKind) Title() string {
	switch k {
	case NoticeSigningOut:
		return "Signing out..."
	case NoticeInactivity:
		return "Session expired due to inactivity"
	default:
		return ""
	}
}

// NoticeDoneMsg reports that a timed notice finished. Seq identifies the
// Show call so a stale timer cannot hide a newer notice.
type NoticeDoneMsg struct {
	Kind NoticeKind
	Seq  int
}

// Notice is a centered modal box drawn over the active screen. While it
// is visible the screen below does not receive keys.
type Notice struct {
	kind   NoticeKind
	detail string
	seq    int
}

// Show displays kind. A sign-out notice returns the command that ends it
// after SigningOutDelay; other notices stay until Hide.
func (n *Notice) Show(kind NoticeKind, detail string) tea.Cmd {
	n.kind = kind
	n.detail = detail
	n.seq++
	if kind != NoticeSigningOut {
		return nil
	}
	msg := NoticeDoneMsg{Kind: kind, Seq: n.seq}
	return tea.Tick(SigningOutDelay, func(time.Time) tea.Msg {
		return msg
	})
}

// Hide removes the notice.
func (n *Notice) Hide() {
	n.kind = NoticeNone
	n.detail = ""
}

// Visible reports whether a notice is shown.
func (n *Notice) Visible() bool {
	return n.kind != NoticeNone
}

// Kind returns the visible notice, or NoticeNone.
func (n *Notice) Kind() NoticeKind {
	return n.kind
}

// Current reports whether msg belongs to the visible notice.
func (n *Notice) Current(msg NoticeDoneMsg) bool {
	return n.kind == msg.Kind && n.seq == msg.Seq
}

// View renders the notice centered in width x height.
func (n *Notice) View(theme *styles.Theme, width, height int) string {
	if !n.Visible() {
		return ""
	}
	body := theme.NoticeTitle.Render(n.kind.Title())
	if n.detail != "" {
		body = lipgloss.JoinVertical(lipgloss.Center, body, "", theme.Subtitle.Render(n.detail))
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, theme.NoticeBox.Render(body))
}

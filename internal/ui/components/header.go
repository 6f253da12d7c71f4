// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/educagestao/educagestao-tui/internal/security"
	"github.com/educagestao/educagestao-tui/internal/ui/styles"
	"github.com/educagestao/educagestao-tui/internal/util"
)

// =============================================================================
// HEADER COMPONENT
// =============================================================================

// Brand is the product name shown in the header.
const Brand = "EducaGestão"

// Header is the title bar: brand on the left, the signed-in user and role
// badge on the right.
type Header struct {
	Width    int
	UserName string
	Role     security.Role
	SignedIn bool
	theme    *styles.Theme
}

// NewHeader creates a header for an 80 column terminal.
func NewHeader(theme *styles.Theme) *Header {
	return &Header{Width: 80, theme: theme}
}

// SetWidth updates the header width.
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// SetUser shows name and role on the right.
func (h *Header) SetUser(name string, role security.Role) {
	h.UserName = name
	h.Role = role
	h.SignedIn = true
}

// ClearUser removes the user block.
func (h *Header) ClearUser() {
	h.UserName = ""
	h.Role = security.RoleUnknown
	h.SignedIn = false
}

// View renders the header.
func (h *Header) View() string {
	left := h.theme.HeaderBrand.Render(Brand)
	if !h.SignedIn {
		return h.theme.Header.Width(h.Width).Render(left)
	}

	badge := h.theme.RoleBadge(h.Role)
	room := h.Width - lipgloss.Width(left) - lipgloss.Width(badge) - 6
	if room < 8 {
		room = 8
	}
	name := h.theme.HeaderUser.Render(util.TruncateWidth(h.UserName, room))
	right := name + " " + badge

	gap := h.Width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return h.theme.Header.Width(h.Width).Render(left + strings.Repeat(" ", gap) + right)
}

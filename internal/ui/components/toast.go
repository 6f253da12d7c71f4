// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Toasts are non-blocking notifications that appear under the active
// screen and dismiss themselves, so the user can keep typing while an
// error is shown.

package components

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/educagestao/educagestao-tui/internal/ui/styles"
	"github.com/educagestao/educagestao-tui/internal/util"
)

// =============================================================================
// TOAST TYPES
// =============================================================================

// ToastKind represents the type of toast notification.
type ToastKind int

const (
	// ToastKindStatus is an informational toast
	ToastKindStatus ToastKind = iota
	// ToastKindError is an error toast
	ToastKindError
	// ToastKindWarning is a warning toast
	ToastKindWarning
)

// ErrorToastDuration is how long a login error stays on screen.
const ErrorToastDuration = 5 * time.Second

// StatusToastDuration is how long an informational notice stays on screen.
const StatusToastDuration = 4 * time.Second

// maxToasts bounds the visible stack.
const maxToasts = 3

// Toast is one notification.
type Toast struct {
	ID       int
	Message  string
	Kind     ToastKind
	Duration time.Duration
}

// ToastDismissMsg dismisses the toast with ID once its duration passes.
type ToastDismissMsg struct {
	ID int
}

// =============================================================================
// TOAST STACK
// =============================================================================

// Toasts is the stack of visible toasts, newest first. It is owned by the
// Bubble Tea model and is not safe for concurrent use.
type Toasts struct {
	items  []Toast
	nextID int
}

// Push adds a toast and returns the command that dismisses it.
func (s *Toasts) Push(kind ToastKind, message string) tea.Cmd {
	d := StatusToastDuration
	if kind == ToastKindError {
		d = ErrorToastDuration
	}
	s.nextID++
	t := Toast{ID: s.nextID, Message: message, Kind: kind, Duration: d}

	s.items = append([]Toast{t}, s.items...)
	if len(s.items) > maxToasts {
		s.items = s.items[:maxToasts]
	}
	return tea.Tick(d, func(time.Time) tea.Msg {
		return ToastDismissMsg{ID: t.ID}
	})
}

// Error adds an error toast.
func (s *Toasts) Error(message string) tea.Cmd {
	return s.Push(ToastKindError, message)
}

// Status adds an informational toast.
func (s *Toasts) Status(message string) tea.Cmd {
	return s.Push(ToastKindStatus, message)
}

// Dismiss removes the toast with id. Unknown ids are ignored.
func (s *Toasts) Dismiss(id int) {
	for i, t := range s.items {
		if t.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

// Clear removes every toast.
func (s *Toasts) Clear() {
	s.items = nil
}

// Items returns a copy of the visible toasts.
func (s *Toasts) Items() []Toast {
	return append([]Toast(nil), s.items...)
}

// Len returns the number of visible toasts.
func (s *Toasts) Len() int {
	return len(s.items)
}

// View renders the stack, one toast per line.
func (s *Toasts) View(theme *styles.Theme, width int) string {
	if len(s.items) == 0 {
		return ""
	}
	maxText := width - 10
	if maxText < 20 {
		maxText = 20
	}

	lines := make([]string, 0, len(s.items))
	for _, t := range s.items {
		msg := util.TruncateWidth(t.Message, maxText)
		switch t.Kind {
		case ToastKindError:
			lines = append(lines, theme.ErrorToast.Render("[!] "+msg))
		case ToastKindWarning:
			lines = append(lines, theme.WarningStyle.Render("[!] ")+msg)
		default:
			lines = append(lines, theme.StatusToast.Render(msg))
		}
	}
	return strings.Join(lines, "\n")
}

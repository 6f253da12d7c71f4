// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package portal

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/educagestao/educagestao-tui/internal/security"
	"github.com/educagestao/educagestao-tui/internal/session"
)

// =============================================================================
// MESSAGES
// =============================================================================

// sessionCheckedMsg carries the result of Manager.Current.
type sessionCheckedMsg struct {
	sess *session.Session
	ok   bool
}

// loginResultMsg carries the result of a login submission.
type loginResultMsg struct {
	sess *session.Session
	err  error
}

// logoutResultMsg reports the end of a logout.
type logoutResultMsg struct {
	err error
}

// sessionEventMsg is a manager transition forwarded by the bridge.
type sessionEventMsg struct {
	event session.Event
}

// sessionFileChangedMsg reports a change of the durable session file.
type sessionFileChangedMsg struct{}

// tickMsg refreshes countdowns once a second.
type tickMsg time.Time

// menuMsg carries the gated home menu.
type menuMsg struct {
	items []menuItem
}

// =============================================================================
// COMMANDS
// =============================================================================

const (
	// loginTimeout bounds a login submission, including a remote verifier.
	loginTimeout = 30 * time.Second
	// storeTimeout bounds a store read or clear.
	storeTimeout = 5 * time.Second
	// recheckEvery is the number of ticks between session re-checks.
	recheckEvery = 10
)

func checkSessionCmd(ctx context.Context, s Sessions) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()
		sess, ok := s.Current(ctx)
		return sessionCheckedMsg{sess: sess, ok: ok}
	}
}

func loginCmd(ctx context.Context, s Sessions, req session.LoginRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, loginTimeout)
		defer cancel()
		sess, err := s.Login(ctx, req)
		return loginResultMsg{sess: sess, err: err}
	}
}

func logoutCmd(ctx context.Context, s Sessions) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()
		return logoutResultMsg{err: s.Logout(ctx)}
	}
}

// menuCmd asks the gate which school areas and actions are visible.
func menuCmd(g Gate) tea.Cmd {
	return func() tea.Msg {
		return menuMsg{items: buildMenu(g)}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// =============================================================================
// MENU
// =============================================================================

// menuItem is one school area on the home screen.
type menuItem struct {
	Resource string
	Title    string
	// Actions holds the visibility of create, edit and delete.
	Actions map[security.Action]bool
}

// areaTitles are the display names of the school areas.
var areaTitles = map[string]string{
	security.ResourceDashboard:   "Painel",
	security.ResourceStudents:    "Alunos",
	security.ResourceTeachers:    "Professores",
	security.ResourceClasses:     "Turmas",
	security.ResourceGrades:      "Notas",
	security.ResourceAttendance:  "Frequência",
	security.ResourceEvents:      "Eventos",
	security.ResourceReports:     "Relatórios",
	security.ResourceEnrollments: "Matrículas",
}

var recordActions = []security.Action{security.ActionCreate, security.ActionEdit, security.ActionDelete}

// buildMenu lists the areas whose view capability is granted.
func buildMenu(g Gate) []menuItem {
	var items []menuItem
	if g.VisibleFor(security.ActionView, security.ResourceDashboard) {
		items = append(items, menuItem{
			Resource: security.ResourceDashboard,
			Title:    areaTitles[security.ResourceDashboard],
			Actions:  map[security.Action]bool{},
		})
	}
	for _, resource := range security.Resources {
		if !g.VisibleFor(security.ActionView, resource) {
			continue
		}
		item := menuItem{
			Resource: resource,
			Title:    areaTitles[resource],
			Actions:  make(map[security.Action]bool, len(recordActions)),
		}
		for _, action := range recordActions {
			item.Actions[action] = g.VisibleFor(action, resource)
		}
		items = append(items, item)
	}
	return items
}

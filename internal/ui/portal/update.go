// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package portal

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/educagestao/educagestao-tui/internal/security"
	"github.com/educagestao/educagestao-tui/internal/session"
	"github.com/educagestao/educagestao-tui/internal/ui/components"
)

// Update handles all Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		m.opts.Sessions.RecordActivity()
		if key.Matches(msg, m.keys.ForceQuit) {
			return m, tea.Quit
		}
		if m.notice.Visible() || m.screen == ScreenLoading {
			return m, nil
		}
		return m.handleKey(msg)

	case tea.MouseMsg:
		m.opts.Sessions.RecordActivity()
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		m.ticks++
		cmds := []tea.Cmd{tickCmd()}
		if m.sess != nil && m.ticks%recheckEvery == 0 {
			cmds = append(cmds, checkSessionCmd(m.ctx, m.opts.Sessions))
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		if !m.submitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sessionCheckedMsg:
		return m.applySession(msg.sess, msg.ok)

	case sessionFileChangedMsg:
		return m, checkSessionCmd(m.ctx, m.opts.Sessions)

	case sessionEventMsg:
		return m.handleEvent(msg.event)

	case loginResultMsg:
		return m.handleLoginResult(msg)

	case logoutResultMsg:
		m.notice.Hide()
		if msg.err != nil {
			m.opts.Logger.Error("logout_failed", slog.Any("error", msg.err))
		}
		m.signedOut()
		return m, nil

	case menuMsg:
		m.menu = msg.items
		if m.menuCursor >= len(m.menu) {
			m.menuCursor = 0
		}
		return m, nil

	case components.ToastDismissMsg:
		m.toasts.Dismiss(msg.ID)
		return m, nil

	case components.NoticeDoneMsg:
		if m.notice.Current(msg) && msg.Kind == components.NoticeSigningOut {
			return m, logoutCmd(m.ctx, m.opts.Sessions)
		}
		return m, nil
	}

	if m.screen == ScreenLogin {
		return m.updateInputs(msg)
	}
	return m, nil
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.header.SetWidth(width)
	m.status.Width = width
	m.help.Width = width
	m.role.Width = width - 4
	m.role.Height = height - 4
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

// applySession shows sess, or returns to sign-in when there is none.
func (m Model) applySession(sess *session.Session, ok bool) (tea.Model, tea.Cmd) {
	if !ok {
		wasSignedIn := m.sess != nil
		m.signedOut()
		if wasSignedIn {
			return m, m.toasts.Status("Your session has ended. Sign in again.")
		}
		return m, nil
	}
	return m, m.signedIn(sess)
}

// signedIn moves to the home screen with sess. The menu is rebuilt only
// when the user changes.
func (m *Model) signedIn(sess *session.Session) tea.Cmd {
	sameUser := m.sess != nil && m.sess.ID == sess.ID
	m.sess = sess
	m.header.SetUser(sess.Name, sess.Role)
	m.submitting = false
	m.password.Reset()
	if m.screen == ScreenLoading || m.screen == ScreenAccess || m.screen == ScreenLogin {
		m.screen = ScreenHome
	}
	if sameUser {
		return nil
	}
	m.menu = nil
	m.menuCursor = 0
	return menuCmd(m.opts.Gate)
}

// signedOut clears the session and shows the sign-in screens. The email
// is kept so the user can sign in again quickly.
func (m *Model) signedOut() {
	hadSession := m.sess != nil
	m.sess = nil
	m.menu = nil
	m.header.ClearUser()
	m.submitting = false
	m.password.Reset()
	switch {
	case m.screen == ScreenLoading:
		m.screen = ScreenAccess
	case hadSession || m.screen > ScreenLogin:
		m.screen = ScreenLogin
		m.setFocus(focusPassword)
		if m.email.Value() == "" {
			m.setFocus(focusEmail)
		}
	}
}

// handleEvent reacts to manager transitions, including those caused by
// timers and other processes.
func (m Model) handleEvent(ev session.Event) (tea.Model, tea.Cmd) {
	switch ev.State {
	case session.StateExpiring:
		return m, m.notice.Show(components.NoticeInactivity, "")

	case session.StateUnauthenticated:
		if m.notice.Kind() == components.NoticeSigningOut {
			// Our own logout; logoutResultMsg finishes it.
			return m, nil
		}
		if ev.Reason == session.ReasonLoginFailed || m.sess == nil {
			return m, nil
		}
		m.notice.Hide()
		m.signedOut()
		switch ev.Reason {
		case session.ReasonHardExpiry:
			return m, m.toasts.Status("Your session has ended. Sign in again.")
		case session.ReasonExternal:
			return m, m.toasts.Status("You were signed out in another terminal.")
		}
		return m, nil

	case session.StateAuthenticated:
		if ev.Session == nil || m.submitting {
			return m, nil
		}
		return m, m.signedIn(ev.Session)
	}
	return m, nil
}

func (m Model) handleLoginResult(msg loginResultMsg) (tea.Model, tea.Cmd) {
	m.submitting = false
	if msg.err == nil {
		m.toasts.Clear()
		return m, m.signedIn(msg.sess)
	}

	m.password.Reset()
	var mismatch *security.RoleMismatchError
	switch {
	case errors.As(msg.err, &mismatch):
		m.screen = ScreenAccess
		for i, mode := range accessChoices {
			if mode != security.AccessAny && security.CheckAccess(mode, mismatch.Role) == nil {
				m.accessCursor = i
			}
		}
		return m, m.toasts.Error(mismatch.Message())
	case errors.Is(msg.err, session.ErrLoginInProgress):
		return m, nil
	case errors.Is(msg.err, security.ErrVerifierUnavailable):
		return m, m.toasts.Error("Authentication service unavailable. Try again in a moment.")
	case errors.Is(msg.err, security.ErrInvalidCredentials):
		m.setFocus(focusPassword)
		return m, m.toasts.Error("Incorrect email or password.")
	default:
		m.opts.Logger.Error("login_error", slog.Any("error", msg.err))
		return m, m.toasts.Error("Could not sign in. Try again.")
	}
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.screen {
	case ScreenAccess:
		return m.accessKey(msg)
	case ScreenLogin:
		return m.loginKey(msg)
	case ScreenHome:
		return m.homeKey(msg)
	case ScreenSession:
		return m.detailKey(msg)
	case ScreenRole:
		if key.Matches(msg, m.keys.Back, m.keys.Quit) {
			m.screen = ScreenHome
			return m, nil
		}
		var cmd tea.Cmd
		m.role, cmd = m.role.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) accessKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.accessCursor > 0 {
			m.accessCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.accessCursor < len(accessChoices)-1 {
			m.accessCursor++
		}
	case key.Matches(msg, m.keys.Select):
		m.access = accessChoices[m.accessCursor]
		m.screen = ScreenLogin
		m.setFocus(focusEmail)
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Quit, m.keys.Back):
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) loginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.submitting {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Back):
		m.screen = ScreenAccess
		return m, nil
	case key.Matches(msg, m.keys.Select):
		return m.submit()
	case key.Matches(msg, m.keys.Remember):
		m.remember = !m.remember
		return m, nil
	case key.Matches(msg, m.keys.NextField):
		m.setFocus((m.focus + 1) % focusCount)
		return m, nil
	case key.Matches(msg, m.keys.PrevField):
		m.setFocus((m.focus + focusCount - 1) % focusCount)
		return m, nil
	case m.focus == focusRemember && msg.String() == " ":
		m.remember = !m.remember
		return m, nil
	}
	return m.updateInputs(msg)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	email := strings.TrimSpace(m.email.Value())
	if email == "" || m.password.Value() == "" {
		return m, m.toasts.Error("Enter your email and password.")
	}
	m.submitting = true
	m.toasts.Clear()
	req := session.LoginRequest{
		Email:      email,
		Password:   m.password.Value(),
		Remember:   m.remember,
		AccessMode: m.access,
	}
	return m, tea.Batch(loginCmd(m.ctx, m.opts.Sessions, req), m.spinner.Tick)
}

func (m Model) homeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.menuCursor > 0 {
			m.menuCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.menuCursor < len(m.menu)-1 {
			m.menuCursor++
		}
	case key.Matches(msg, m.keys.Session):
		m.screen = ScreenSession
	case key.Matches(msg, m.keys.Role):
		m.showRole()
		m.screen = ScreenRole
	case key.Matches(msg, m.keys.Logout):
		return m, m.notice.Show(components.NoticeSigningOut, "")
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) detailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back, m.keys.Quit):
		m.screen = ScreenHome
	case key.Matches(msg, m.keys.Role):
		m.showRole()
		m.screen = ScreenRole
	case key.Matches(msg, m.keys.Logout):
		return m, m.notice.Show(components.NoticeSigningOut, "")
	}
	return m, nil
}

// =============================================================================
// FORM HELPERS
// =============================================================================

func (m *Model) setFocus(f int) {
	m.focus = f
	m.email.Blur()
	m.password.Blur()
	switch f {
	case focusEmail:
		m.email.Focus()
	case focusPassword:
		m.password.Focus()
	}
}

func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case focusEmail:
		m.email, cmd = m.email.Update(msg)
	case focusPassword:
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

// showRole renders the role description into the viewport.
func (m *Model) showRole() {
	if m.sess == nil {
		return
	}
	md := security.DescribeMarkdown(m.sess.Role)
	content := md
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(m.width-6),
	)
	if err == nil {
		if rendered, err := renderer.Render(md); err == nil {
			content = rendered
		}
	}
	m.role.SetContent(content)
	m.role.GotoTop()
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package portal

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/educagestao/educagestao-tui/internal/security"
	"github.com/educagestao/educagestao-tui/internal/session"
	"github.com/educagestao/educagestao-tui/internal/ui/components"
	"github.com/educagestao/educagestao-tui/internal/ui/styles"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Sessions is the part of the session manager the portal drives.
type Sessions interface {
	Login(ctx context.Context, req session.LoginRequest) (*session.Session, error)
	Logout(ctx context.Context) error
	Current(ctx context.Context) (*session.Session, bool)
	RecordActivity()
	Subscribe(fn func(session.Event)) func()
}

// Gate answers visibility questions for the home menu.
type Gate interface {
	VisibleFor(action security.Action, resource string) bool
}

// Options configures the portal.
type Options struct {
	Sessions Sessions
	Gate     Gate
	// AccessMode preselects the access type on the first screen.
	AccessMode security.AccessMode
	// SessionFile is the durable session file to watch, or "".
	SessionFile string
	// Now returns the current time. Defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// =============================================================================
// SCREENS
// =============================================================================

// Screen identifies the active screen.
type Screen int

const (
	ScreenLoading Screen = iota
	ScreenAccess
	ScreenLogin
	ScreenHome
	ScreenSession
	ScreenRole
)

// String returns the screen name.
func (s Screen) String() string {
	switch s {
	case ScreenLoading:
		return "loading"
	case ScreenAccess:
		return "access"
	case ScreenLogin:
		return "login"
	case ScreenHome:
		return "home"
	case ScreenSession:
		return "session"
	case ScreenRole:
		return "role"
	default:
		return "unknown"
	}
}

// accessChoices is the order of the access selection screen.
var accessChoices = []security.AccessMode{security.AccessAny, security.AccessAdmin, security.AccessProfessional}

// Login form focus positions.
const (
	focusEmail = iota
	focusPassword
	focusRemember
	focusCount
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the portal.
type Model struct {
	ctx    context.Context
	opts   Options
	theme  *styles.Theme
	keys   KeyMap
	help   help.Model
	header *components.Header
	status *components.StatusBar
	toasts *components.Toasts
	notice *components.Notice

	screen Screen
	width  int
	height int
	now    time.Time
	ticks  int

	// Access selection
	accessCursor int
	access       security.AccessMode

	// Login form
	email      textinput.Model
	password   textinput.Model
	remember   bool
	focus      int
	submitting bool
	spinner    spinner.Model

	// Signed in
	sess       *session.Session
	menu       []menuItem
	menuCursor int
	role       viewport.Model
}

// New creates the portal model.
func New(ctx context.Context, opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	theme := styles.NewTheme()

	email := textinput.New()
	email.Placeholder = "nome@escola.com"
	email.CharLimit = 254
	email.Prompt = ""
	email.Focus()

	password := textinput.New()
	password.Placeholder = "senha"
	password.CharLimit = 256
	password.Prompt = ""
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '*'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Subtitle

	m := Model{
		ctx:      ctx,
		opts:     opts,
		theme:    theme,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		header:   components.NewHeader(theme),
		status:   components.NewStatusBar(theme),
		toasts:   &components.Toasts{},
		notice:   &components.Notice{},
		screen:   ScreenLoading,
		width:    80,
		height:   24,
		now:      opts.Now(),
		access:   opts.AccessMode,
		email:    email,
		password: password,
		spinner:  sp,
		role:     viewport.New(76, 16),
	}
	for i, mode := range accessChoices {
		if mode == opts.AccessMode {
			m.accessCursor = i
		}
	}
	return m
}

// Init restores a remembered session, if any, and starts the clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(checkSessionCmd(m.ctx, m.opts.Sessions), tickCmd())
}

// Screen returns the active screen.
func (m Model) Screen() Screen {
	return m.screen
}

// Session returns the session shown by the portal, or nil.
func (m Model) Session() *session.Session {
	return m.sess
}

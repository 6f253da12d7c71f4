// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/educagestao/educagestao-tui/internal/config"
	"github.com/educagestao/educagestao-tui/internal/credentials"
	"github.com/educagestao/educagestao-tui/internal/logging"
	"github.com/educagestao/educagestao-tui/internal/security"
	"github.com/educagestao/educagestao-tui/internal/session"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type cliFixture struct {
	cfg   *config.Config
	clock *session.FakeClock
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.Auth.BcryptCost = 4
	return &cliFixture{
		cfg:   cfg,
		clock: session.NewFakeClock(time.Now().Truncate(time.Second)),
	}
}

// open starts a fresh process-equivalent App over the same data directory.
func (f *cliFixture) open(t *testing.T) *App {
	t.Helper()
	app, err := OpenApp(context.Background(), Args{},
		WithConfig(f.cfg),
		WithAppLogger(logging.Discard()),
		WithAppClock(f.clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func answers(lines ...string) Prompter {
	return NewReaderPrompter(strings.NewReader(strings.Join(lines, "\n")+"\n"), &bytes.Buffer{})
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *string         `json:"error"`
	Command string          `json:"command"`
}

func decodeEnvelope(t *testing.T, buf *bytes.Buffer, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func (f *cliFixture) login(t *testing.T, app *App, email, password string, flags ...string) error {
	t.Helper()
	raw := append([]string{"--email", email}, flags...)
	return runLogin(context.Background(), app, Args{Raw: raw}, &bytes.Buffer{}, answers(password))
}

// =============================================================================
// PARSING
// =============================================================================

func TestParseArgs(t *testing.T) {
	tests := []struct {
		argv    []string
		want    Command
		json    bool
		rawHead string
	}{
		{nil, CmdTUI, false, ""},
		{[]string{"login", "--remember"}, CmdLogin, false, "--remember"},
		{[]string{"--json", "status"}, CmdStatus, true, ""},
		{[]string{"can", "create_notas", "--json"}, CmdCan, true, "create_notas"},
		{[]string{"cargos"}, CmdRoles, false, ""},
		{[]string{"usuarios", "list"}, CmdUsers, false, "list"},
		{[]string{"serve", "--addr", ":5001"}, CmdServe, false, "--addr"},
		{[]string{"--version"}, CmdVersion, false, ""},
		{[]string{"-h"}, CmdHelp, false, ""},
		{[]string{"teleport"}, CmdUnknown, false, "teleport"},
	}
	for _, tt := range tests {
		cmd, args := ParseArgs(tt.argv)
		assert.Equal(t, tt.want, cmd, "%v", tt.argv)
		assert.Equal(t, tt.json, args.JSON, "%v", tt.argv)
		if tt.rawHead != "" {
			require.NotEmpty(t, args.Raw, "%v", tt.argv)
			assert.Equal(t, tt.rawHead, args.Raw[0])
		}
	}
}

func TestParseArgs_ConfigFlag(t *testing.T) {
	_, args := ParseArgs([]string{"--config=/etc/escola.toml", "status", "-v"})
	assert.Equal(t, "/etc/escola.toml", args.ConfigPath)
	assert.True(t, args.Verbose)

	_, args = ParseArgs([]string{"--config", "/tmp/c.toml", "roles"})
	assert.Equal(t, "/tmp/c.toml", args.ConfigPath)
}

func TestArgParser_SwitchesNeverTakeValues(t *testing.T) {
	p := NewArgParser([]string{"--describe", "professor"}, "describe")
	assert.True(t, p.BoolFlag("describe"))
	assert.Equal(t, "professor", p.Subcommand())

	p = NewArgParser([]string{"--describe", "professor"})
	assert.Equal(t, "professor", p.Flag("describe"), "undeclared flags consume the next word")
}

func TestArgParser_Formats(t *testing.T) {
	p := NewArgParser([]string{"add", "--name=Ana Lima", "-e", "ana@escola.com", "--confirm=no", "--", "--literal"}, "confirm")
	assert.Equal(t, "add", p.Subcommand())
	assert.Equal(t, "Ana Lima", p.Flag("name"))
	assert.Equal(t, "ana@escola.com", p.Flag("email", "e"))
	assert.False(t, p.BoolFlag("confirm"))
	assert.Equal(t, "--literal", p.Positional(1))
	assert.Equal(t, 2, p.PositionalCount())
	assert.True(t, p.HasFlag("--name"))
	assert.Equal(t, "x", p.FlagOrDefault("missing", "x"))
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"y", "YES", "sim", "1"} {
		b, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.True(t, b, s)
	}
	b, err := ParseBoolString("não")
	require.NoError(t, err)
	assert.False(t, b)
	_, err = ParseBoolString("maybe")
	assert.Error(t, err)
}

// =============================================================================
// ERRORS AND EXIT CODES
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitSuccess},
		{errors.New("boom"), ExitGeneralError},
		{NewValidationError("x", "", "bad"), ExitUsageError},
		{&PermissionError{Action: "can", Permission: "create_notas"}, ExitAuthError},
		{&ReportedError{Err: &PermissionError{}}, ExitAuthError},
		{security.ErrInvalidCredentials, ExitAuthError},
		{fmt.Errorf("login: %w", &security.RoleMismatchError{Role: security.RoleAdmin, Mode: security.AccessProfessional}), ExitAuthError},
		{session.ErrNoSession, ExitAuthError},
		{fmt.Errorf("%w: dial tcp", security.ErrVerifierUnavailable), ExitNetworkError},
		{&NotFoundError{Resource: "role", ID: "janitor"}, ExitNotFoundError},
		{NewCommandError("users", "enable", "x", credentials.ErrUserNotFound), ExitNotFoundError},
		{&ConfigError{Path: "c.toml", Err: errors.New("bad")}, ExitConfigError},
		{ErrConfirmationRequired, ExitUsageError},
		{context.DeadlineExceeded, ExitTimeoutError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GetExitCode(tt.err), "%v", tt.err)
	}
}

func TestWriteErrorJSON(t *testing.T) {
	var buf bytes.Buffer
	writeErrorJSON(&buf, "can", &PermissionError{Action: "can", UserID: "2", Permission: "delete_alunos"})

	var details errorDetails
	env := decodeEnvelope(t, &buf, &details)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Contains(t, *env.Error, "delete_alunos")
	assert.Equal(t, "permission_error", details.Type)
	assert.Equal(t, ExitAuthError, details.ExitCode)
}

func TestHandleUnknown(t *testing.T) {
	err := HandleUnknown(Args{Raw: []string{"teleport"}})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
	assert.Contains(t, err.Error(), "teleport")
}

// =============================================================================
// LOGIN / STATUS / CAN / LOGOUT
// =============================================================================

func TestLogin_RememberedSessionIsSharedAcrossProcesses(t *testing.T) {
	f := newCLIFixture(t)
	ctx := context.Background()

	first := f.open(t)
	var out bytes.Buffer
	err := runLogin(ctx, first, Args{JSON: true, Raw: []string{"--email", "professor@escola.com", "--remember"}}, &out, answers("prof123"))
	require.NoError(t, err)

	var login LoginData
	decodeEnvelope(t, &out, &login)
	assert.Equal(t, "teacher", login.Session.Role)
	assert.Equal(t, "durable", login.Session.Tier)
	assert.False(t, login.ProcessOnly)

	second := f.open(t)
	out.Reset()
	require.NoError(t, runStatus(ctx, second, Args{JSON: true}, &out, false))
	var status StatusData
	decodeEnvelope(t, &out, &status)
	require.True(t, status.Authenticated)
	assert.Equal(t, "professor@escola.com", status.Session.Email)
	assert.Equal(t, "file", status.Backend)

	out.Reset()
	require.NoError(t, runCan(ctx, second, Args{Raw: []string{"create:grades"}}, &out))
	assert.Contains(t, out.String(), "create_notas")

	err = runCan(ctx, second, Args{Raw: []string{"delete_alunos"}}, &out)
	require.Error(t, err)
	assert.Equal(t, ExitAuthError, GetExitCode(err))

	out.Reset()
	require.NoError(t, runLogout(ctx, second, Args{}, &out))
	assert.Contains(t, out.String(), "Signed out")

	third := f.open(t)
	_, ok := third.Manager.Current(ctx)
	assert.False(t, ok)
}

func TestLogin_WithoutRememberIsProcessOnly(t *testing.T) {
	f := newCLIFixture(t)
	ctx := context.Background()

	first := f.open(t)
	var out bytes.Buffer
	err := runLogin(ctx, first, Args{Raw: []string{"--email", "admin@escola.com"}}, &out, answers("admin123"))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "ends when this command exits")
	assert.True(t, first.Gate.IsSuperuser())

	second := f.open(t)
	_, ok := second.Manager.Current(ctx)
	assert.False(t, ok)
}

func TestLogin_PromptsForEmail(t *testing.T) {
	f := newCLIFixture(t)
	app := f.open(t)
	err := runLogin(context.Background(), app, Args{Raw: []string{"--remember"}}, &bytes.Buffer{},
		answers("secretaria@escola.com", "sec123"))
	require.NoError(t, err)
	assert.True(t, app.Gate.Visible("create:students"))
	assert.False(t, app.Gate.Visible("delete:students"))
}

func TestLogin_WrongPasswordLeavesNoSession(t *testing.T) {
	f := newCLIFixture(t)
	app := f.open(t)

	err := f.login(t, app, "admin@escola.com", "wrong", "--remember")
	require.ErrorIs(t, err, security.ErrInvalidCredentials)
	assert.Equal(t, ExitAuthError, GetExitCode(err))

	_, ok := f.open(t).Manager.Current(context.Background())
	assert.False(t, ok)
}

func TestLogin_InactiveDirectoryAccountIgnoresDemoUsers(t *testing.T) {
	f := newCLIFixture(t)
	require.True(t, f.cfg.Auth.DemoUsers)
	app := f.open(t)
	require.NoError(t, app.Directory.SetStatus(context.Background(), "admin@escola.com", credentials.StatusInactive))

	err := f.login(t, app, "admin@escola.com", "admin123", "--remember")
	require.ErrorIs(t, err, security.ErrInvalidCredentials)

	_, ok := f.open(t).Manager.Current(context.Background())
	assert.False(t, ok)
}

func TestLogin_AccessMismatch(t *testing.T) {
	f := newCLIFixture(t)
	app := f.open(t)

	err := f.login(t, app, "admin@escola.com", "admin123", "--access", "professional")
	require.ErrorIs(t, err, security.ErrRoleMismatch)
	assert.Contains(t, err.Error(), "--access admin")

	err = f.login(t, app, "admin@escola.com", "admin123", "--access", "guest")
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestStatus_NotSignedIn(t *testing.T) {
	f := newCLIFixture(t)
	app := f.open(t)
	var out bytes.Buffer
	require.NoError(t, runStatus(context.Background(), app, Args{}, &out, false))
	assert.Contains(t, out.String(), "Not signed in")

	err := runStatus(context.Background(), app, Args{Raw: []string{"--raw"}}, &out, false)
	require.ErrorIs(t, err, session.ErrNoSession)
}

func TestStatus_RawPrintsStoredRecord(t *testing.T) {
	f := newCLIFixture(t)
	app := f.open(t)
	require.NoError(t, f.login(t, app, "professor@escola.com", "prof123", "--remember"))

	var out bytes.Buffer
	require.NoError(t, runStatus(context.Background(), app, Args{Raw: []string{"--raw"}}, &out, false))
	var record map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &record))
	assert.Equal(t, "professor@escola.com", record["email"])

	assert.Contains(t, highlightJSON(`{"a": 1}`), "a")
}

func TestCan_UnknownAndMissingTokens(t *testing.T) {
	f := newCLIFixture(t)
	app := f.open(t)

	err := runCan(context.Background(), app, Args{}, &bytes.Buffer{})
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	err = runCan(context.Background(), app, Args{Raw: []string{"fly_dragons"}}, &bytes.Buffer{})
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
}

func TestCan_NoSessionDenies(t *testing.T) {
	f := newCLIFixture(t)
	app := f.open(t)
	var out bytes.Buffer
	err := runCan(context.Background(), app, Args{JSON: true, Raw: []string{"view_dashboard"}}, &out)
	require.Error(t, err)

	var data CanData
	env := decodeEnvelope(t, &out, &data)
	assert.True(t, env.Success)
	assert.False(t, data.Allowed)
	assert.Equal(t, "view_dashboard", data.Permission)
}

func TestSQLiteDurableBackend(t *testing.T) {
	f := newCLIFixture(t)
	f.cfg.Session.DurableBackend = "sqlite"

	require.NoError(t, f.login(t, f.open(t), "admin@escola.com", "admin123", "--remember"))

	app := f.open(t)
	sess, ok := app.Manager.Current(context.Background())
	require.True(t, ok)
	assert.Equal(t, security.RoleAdmin, sess.Role)
	assert.Equal(t, "", app.SessionFile())
	assert.Equal(t, "sqlite", app.Store.Durable().Name())
}

// =============================================================================
// ROLES
// =============================================================================

func TestRoles(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runRoles(Args{JSON: true}, &out, false))
	var infos []security.RoleInfo
	decodeEnvelope(t, &out, &infos)
	require.Len(t, infos, 5)

	out.Reset()
	require.NoError(t, runRoles(Args{Raw: []string{"--describe", "professor"}}, &out, false))
	assert.Contains(t, out.String(), "# Professor")
	assert.Contains(t, out.String(), "`create_notas`")

	out.Reset()
	require.NoError(t, runRoles(Args{Raw: []string{"secretaria"}}, &out, false))
	assert.Contains(t, out.String(), "Secretaria")
	assert.Contains(t, out.String(), "create_matriculas")

	err := runRoles(Args{Raw: []string{"janitor"}}, &out, false)
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
}

// =============================================================================
// USERS
// =============================================================================

func TestUsers_RequireSuperuser(t *testing.T) {
	f := newCLIFixture(t)
	app := f.open(t)
	ctx := context.Background()

	err := runUsers(ctx, app, Args{}, &bytes.Buffer{}, answers(), false)
	assert.Equal(t, ExitAuthError, GetExitCode(err))

	require.NoError(t, f.login(t, app, "professor@escola.com", "prof123", "--remember"))
	err = runUsers(ctx, app, Args{Raw: []string{"list"}}, &bytes.Buffer{}, answers(), false)
	var perm *PermissionError
	require.ErrorAs(t, err, &perm)
	assert.Equal(t, "2", perm.UserID)
}

func TestUsers_Lifecycle(t *testing.T) {
	f := newCLIFixture(t)
	app := f.open(t)
	ctx := context.Background()
	require.NoError(t, f.login(t, app, "admin@escola.com", "admin123", "--remember"))

	var out bytes.Buffer
	add := Args{Raw: []string{"add", "--name", "Ana Lima", "--email", "Ana@Escola.com", "--role", "coordenador"}}
	require.NoError(t, runUsers(ctx, app, add, &out, answers("segredo1", "segredo1"), false))
	assert.Contains(t, out.String(), "ana@escola.com")

	err := runUsers(ctx, app, add, &out, answers("segredo1", "segredo1"), false)
	require.ErrorIs(t, err, credentials.ErrUserExists)

	err = runUsers(ctx, app, Args{Raw: []string{"add", "--name", "X", "--email", "x@escola.com", "--role", "professor"}},
		&out, answers("abc", "abd"), false)
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	out.Reset()
	require.NoError(t, runUsers(ctx, app, Args{JSON: true}, &out, answers(), false))
	var users UsersData
	decodeEnvelope(t, &out, &users)
	require.Len(t, users.Users, 2)

	// A second process can sign in as the new coordinator.
	other := f.open(t)
	require.NoError(t, f.login(t, other, "ana@escola.com", "segredo1"))
	assert.True(t, other.Gate.HasPermission("delete_alunos"))

	err = runUsers(ctx, app, Args{Raw: []string{"disable", "ana@escola.com"}}, &out, answers(), false)
	require.ErrorIs(t, err, ErrConfirmationRequired)

	require.NoError(t, runUsers(ctx, app, Args{Raw: []string{"disable", "ana@escola.com"}}, &out, answers("y"), true))
	err = f.login(t, f.open(t), "ana@escola.com", "segredo1")
	require.ErrorIs(t, err, security.ErrInvalidCredentials)

	require.NoError(t, runUsers(ctx, app, Args{Raw: []string{"enable", "ana@escola.com"}}, &out, answers(), false))
	require.NoError(t, f.login(t, f.open(t), "ana@escola.com", "segredo1"))

	err = runUsers(ctx, app, Args{Raw: []string{"disable", "admin@escola.com", "--confirm"}}, &out, answers(), false)
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	err = runUsers(ctx, app, Args{Raw: []string{"enable", "ghost@escola.com"}}, &out, answers(), false)
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
}

func TestUsers_DeclinedConfirmation(t *testing.T) {
	f := newCLIFixture(t)
	app := f.open(t)
	ctx := context.Background()
	require.NoError(t, f.login(t, app, "admin@escola.com", "admin123", "--remember"))

	var out bytes.Buffer
	require.NoError(t, runUsers(ctx, app, Args{Raw: []string{"disable", "ghost@escola.com"}}, &out, answers("n"), true))
	assert.Contains(t, out.String(), "Cancelled")
}

// =============================================================================
// SERVE
// =============================================================================

func TestServeVerifiesLocalDirectory(t *testing.T) {
	f := newCLIFixture(t)
	app := f.open(t)
	api := httptest.NewServer(newServer(app).Handler())
	defer api.Close()

	body := strings.NewReader(`{"email":"admin@escola.com","password":"admin123"}`)
	resp, err := http.Post(api.URL+"/api/auth/login", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// A client configured with the remote verifier signs in through it.
	remote := credentials.NewRemote(api.URL, 2*time.Second)
	user, err := remote.Verify(context.Background(), "admin@escola.com", "admin123")
	require.NoError(t, err)
	assert.Equal(t, security.RoleAdmin, user.Role)
}

func TestBuildVerifier(t *testing.T) {
	cfg := config.Default(t.TempDir())
	assert.IsType(t, credentials.Chain{}, buildVerifier(cfg, nil))

	cfg.Auth.Verifier = "demo"
	assert.IsType(t, credentials.Demo{}, buildVerifier(cfg, nil))

	cfg.Auth.Verifier = "remote"
	cfg.Auth.APIURL = "http://127.0.0.1:5000"
	assert.IsType(t, &credentials.Remote{}, buildVerifier(cfg, nil))

	cfg.Auth.Verifier = "fallback"
	chain, ok := buildVerifier(cfg, nil).(credentials.Chain)
	require.True(t, ok)
	assert.Len(t, chain, 3)
}

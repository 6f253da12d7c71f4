// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/educagestao/educagestao-tui/internal/credentials"
	"github.com/educagestao/educagestao-tui/internal/security"
)

type managerFixture struct {
	clock     *FakeClock
	store     *TieredStore
	durable   *MemoryBackend
	ephemeral *MemoryBackend
	mgr       *Manager
	gate      *security.Gate

	mu     sync.Mutex
	events []Event
}

func newManagerFixture(t *testing.T, verifier credentials.Verifier) *managerFixture {
	t.Helper()
	f := &managerFixture{clock: NewFakeClock(testStart)}
	f.store, f.durable, f.ephemeral = newMemoryStore(f.clock)
	f.mgr = NewManager(f.store, verifier, WithClock(f.clock), WithLogger(discardLogger()))
	f.gate = security.NewGate(f.mgr)
	f.mgr.Subscribe(func(ev Event) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, ev)
	})
	t.Cleanup(f.mgr.Close)
	return f
}

func (f *managerFixture) login(t *testing.T, email, password string, remember bool) *Session {
	t.Helper()
	sess, err := f.mgr.Login(context.Background(), LoginRequest{Email: email, Password: password, Remember: remember})
	require.NoError(t, err)
	return sess
}

func (f *managerFixture) states() []State {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]State, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.State
	}
	return out
}

func (f *managerFixture) lastEvent() Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[len(f.events)-1]
}

func (f *managerFixture) tiersEmpty(t *testing.T) bool {
	t.Helper()
	return readBytes(t, f.durable) == nil && readBytes(t, f.ephemeral) == nil
}

// =============================================================================
// LOGIN TESTS
// =============================================================================

func TestManager_AdminEphemeralLogin(t *testing.T) {
	f := newManagerFixture(t, credentials.Demo{})

	sess := f.login(t, "admin@escola.com", "admin123", false)
	assert.Equal(t, security.RoleAdmin, sess.Role)
	assert.Equal(t, EphemeralTTL, sess.ExpiresAt.Sub(sess.CreatedAt))
	assert.Equal(t, StateAuthenticated, f.mgr.State())

	assert.True(t, f.gate.HasPermission("delete_alunos"))
	assert.True(t, f.gate.HasPermission("delete_students_that_do_not_exist"))
	assert.True(t, f.gate.IsSuperuser())

	assert.Nil(t, readBytes(t, f.durable))
	assert.NotNil(t, readBytes(t, f.ephemeral))
	assert.Equal(t, []State{StateAuthenticating, StateAuthenticated}, f.states())
}

func TestManager_TeacherRememberedLogin(t *testing.T) {
	f := newManagerFixture(t, credentials.Demo{})

	sess := f.login(t, "Professor@Escola.com ", "prof123", true)
	assert.Equal(t, security.RoleTeacher, sess.Role)
	assert.Equal(t, PersistentTTL, sess.ExpiresAt.Sub(sess.CreatedAt))
	assert.Equal(t, testStart.Add(7*24*time.Hour), sess.ExpiresAt)

	assert.False(t, f.gate.HasPermission("delete_alunos"))
	assert.True(t, f.gate.HasPermission("create_notas"))
	assert.False(t, f.gate.IsSuperuser())

	assert.NotNil(t, readBytes(t, f.durable))
	assert.Nil(t, readBytes(t, f.ephemeral))

	// Remembered sessions have no inactivity watchdog.
	assert.Zero(t, f.clock.Pending())
	f.clock.Advance(time.Hour)
	_, ok := f.mgr.Current(context.Background())
	assert.True(t, ok)
}

func TestManager_WrongPasswordWritesNothing(t *testing.T) {
	f := newManagerFixture(t, credentials.Demo{})

	_, err := f.mgr.Login(context.Background(), LoginRequest{Email: "admin@escola.com", Password: "wrong"})
	require.ErrorIs(t, err, security.ErrInvalidCredentials)
	assert.Equal(t, StateUnauthenticated, f.mgr.State())
	assert.True(t, f.tiersEmpty(t))
	assert.False(t, f.gate.HasPermission(security.PermViewDashboard))
}

func TestManager_InvalidInputIsInvalidCredentials(t *testing.T) {
	f := newManagerFixture(t, credentials.Demo{})

	for _, req := range []LoginRequest{
		{Email: "", Password: "x"},
		{Email: "not-an-email", Password: "x"},
		{Email: "admin@escola.com", Password: ""},
	} {
		_, err := f.mgr.Login(context.Background(), req)
		require.ErrorIs(t, err, security.ErrInvalidCredentials)
	}
	assert.True(t, f.tiersEmpty(t))
}

func TestManager_InactiveUserCannotLogin(t *testing.T) {
	verifier := credentials.VerifierFunc(func(ctx context.Context, email, password string) (credentials.User, error) {
		return credentials.User{ID: "9", Email: email, Role: security.RoleTeacher, Status: credentials.StatusInactive}, nil
	})
	f := newManagerFixture(t, verifier)

	_, err := f.mgr.Login(context.Background(), LoginRequest{Email: "ana@escola.com", Password: "secret"})
	require.ErrorIs(t, err, security.ErrInvalidCredentials)
	assert.True(t, f.tiersEmpty(t))
}

func TestManager_UnavailableVerifierIsReported(t *testing.T) {
	verifier := credentials.VerifierFunc(func(ctx context.Context, email, password string) (credentials.User, error) {
		return credentials.User{}, security.ErrVerifierUnavailable
	})
	f := newManagerFixture(t, verifier)

	_, err := f.mgr.Login(context.Background(), LoginRequest{Email: "ana@escola.com", Password: "secret"})
	require.ErrorIs(t, err, security.ErrVerifierUnavailable)
	assert.Equal(t, StateUnauthenticated, f.mgr.State())
}

func TestManager_RoleMismatchCreatesNoSession(t *testing.T) {
	f := newManagerFixture(t, credentials.Demo{})

	_, err := f.mgr.Login(context.Background(), LoginRequest{
		Email:      "professor@escola.com",
		Password:   "prof123",
		AccessMode: security.AccessAdmin,
	})
	var mismatch *security.RoleMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, security.RoleTeacher, mismatch.Role)
	assert.True(t, f.tiersEmpty(t))

	_, err = f.mgr.Login(context.Background(), LoginRequest{
		Email:      "admin@escola.com",
		Password:   "admin123",
		AccessMode: security.AccessAdmin,
	})
	require.NoError(t, err)
}

func TestManager_SequentialLoginsOverwrite(t *testing.T) {
	f := newManagerFixture(t, credentials.Demo{})

	first := f.login(t, "admin@escola.com", "admin123", true)
	second := f.login(t, "secretaria@escola.com", "sec123", false)

	got, ok := f.mgr.Current(context.Background())
	require.True(t, ok)
	assert.Equal(t, second.ID, got.ID)
	assert.NotEqual(t, first.ID, got.ID)
	assert.Equal(t, security.RoleSecretary, got.Role)
	assert.Nil(t, readBytes(t, f.durable), "first session must be gone")
	assert.False(t, f.gate.HasPermission("delete_alunos"))
	assert.False(t, f.gate.IsSuperuser())
}

func TestManager_FailedLoginKeepsExistingSession(t *testing.T) {
	f := newManagerFixture(t, credentials.Demo{})

	sess := f.login(t, "secretaria@escola.com", "sec123", false)
	_, err := f.mgr.Login(context.Background(), LoginRequest{Email: "admin@escola.com", Password: "nope"})
	require.ErrorIs(t, err, security.ErrInvalidCredentials)

	got, ok := f.mgr.Current(context.Background())
	require.True(t, ok)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, 1, f.clock.Pending(), "watchdog rearmed for the kept session")
}

func TestManager_LoginInProgress(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	verifier := credentials.VerifierFunc(func(ctx context.Context, email, password string) (credentials.User, error) {
		close(entered)
		<-release
		return credentials.Demo{}.Verify(ctx, email, password)
	})
	f := newManagerFixture(t, verifier)

	done := make(chan error, 1)
	go func() {
		_, err := f.mgr.Login(context.Background(), LoginRequest{Email: "admin@escola.com", Password: "admin123"})
		done <- err
	}()
	<-entered
	assert.Equal(t, StateAuthenticating, f.mgr.State())
	_, ok := f.mgr.Current(context.Background())
	assert.False(t, ok)

	_, err := f.mgr.Login(context.Background(), LoginRequest{Email: "admin@escola.com", Password: "admin123"})
	require.ErrorIs(t, err, ErrLoginInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateAuthenticated, f.mgr.State())
}

func TestManager_UnknownRoleGetsDefault(t *testing.T) {
	verifier := credentials.VerifierFunc(func(ctx context.Context, email, password string) (credentials.User, error) {
		return credentials.User{ID: "5", Email: email, Role: security.RoleUnknown, Status: credentials.StatusActive}, nil
	})
	f := newManagerFixture(t, verifier)

	f.login(t, "zelador@escola.com", "secret", false)
	got, ok := f.mgr.Current(context.Background())
	require.True(t, ok)
	assert.Equal(t, []security.Permission{security.PermViewDashboard}, got.Permissions)
	assert.True(t, f.gate.Visible("view_dashboard"))
	assert.False(t, f.gate.Visible("view_alunos"))
}

// =============================================================================
// LOGOUT TESTS
// =============================================================================

func TestManager_LogoutClearsEverything(t *testing.T) {
	for _, remember := range []bool{false, true} {
		f := newManagerFixture(t, credentials.Demo{})
		f.login(t, "admin@escola.com", "admin123", remember)

		require.NoError(t, f.mgr.Logout(context.Background()))
		assert.True(t, f.tiersEmpty(t))
		assert.Equal(t, StateUnauthenticated, f.mgr.State())
		assert.Zero(t, f.clock.Pending())
		assert.False(t, f.gate.HasPermission("delete_alunos"))
		assert.False(t, f.gate.HasPermission(security.PermAll))
		assert.False(t, f.gate.IsSuperuser())
		assert.Equal(t, ReasonLogout, f.lastEvent().Reason)
	}
}

func TestManager_LogoutIsIdempotent(t *testing.T) {
	f := newManagerFixture(t, credentials.Demo{})
	require.NoError(t, f.mgr.Logout(context.Background()))
	require.NoError(t, f.mgr.Logout(context.Background()))
	assert.Empty(t, f.states())
}

// =============================================================================
// EXPIRY TESTS
// =============================================================================

func TestManager_HardExpiry(t *testing.T) {
	f := newManagerFixture(t, credentials.Demo{})
	f.login(t, "professor@escola.com", "prof123", true)

	f.clock.Advance(PersistentTTL)
	_, ok := f.mgr.Current(context.Background())
	require.True(t, ok, "valid up to and including expiresAt")

	f.clock.Advance(time.Second)
	_, ok = f.mgr.Current(context.Background())
	require.False(t, ok)
	assert.True(t, f.tiersEmpty(t))
	assert.Equal(t, StateUnauthenticated, f.mgr.State())

	states := f.states()
	assert.Equal(t, []State{StateExpired, StateUnauthenticated}, states[len(states)-2:])
	assert.Equal(t, ReasonHardExpiry, f.lastEvent().Reason)
}

func TestManager_EphemeralHardExpiryDespiteActivity(t *testing.T) {
	f := newManagerFixture(t, credentials.Demo{})
	f.login(t, "admin@escola.com", "admin123", false)

	for elapsed := time.Duration(0); elapsed <= EphemeralTTL; elapsed += time.Minute {
		f.clock.Advance(time.Minute)
		f.mgr.RecordActivity()
	}
	_, ok := f.mgr.Current(context.Background())
	assert.False(t, ok, "activity never extends the hard expiry")
	assert.True(t, f.tiersEmpty(t))
}

func TestManager_InactivityExpiry(t *testing.T) {
	f := newManagerFixture(t, credentials.Demo{})
	f.login(t, "admin@escola.com", "admin123", false)

	f.clock.Advance(InactivityTimeout)
	assert.Equal(t, StateExpiring, f.mgr.State())
	_, ok := f.mgr.Current(context.Background())
	assert.False(t, ok, "no session is served during the grace period")
	assert.False(t, f.gate.HasPermission("view_alunos"))

	f.clock.Advance(InactivityGrace)
	assert.Equal(t, StateUnauthenticated, f.mgr.State())
	assert.True(t, f.tiersEmpty(t))
	assert.Zero(t, f.clock.Pending())

	assert.Equal(t,
		[]State{StateAuthenticating, StateAuthenticated, StateExpiring, StateExpired, StateUnauthenticated},
		f.states())
	assert.Equal(t, ReasonInactivity, f.lastEvent().Reason)
}

func TestManager_ActivityResetsWatchdog(t *testing.T) {
	f := newManagerFixture(t, credentials.Demo{})
	f.login(t, "admin@escola.com", "admin123", false)

	f.clock.Advance(time.Minute + 59*time.Second)
	f.mgr.RecordActivity()

	f.clock.Advance(time.Second)
	assert.Equal(t, StateAuthenticated, f.mgr.State(), "no expiry at 2:00 after activity at 1:59")
	_, ok := f.mgr.Current(context.Background())
	assert.True(t, ok)

	f.clock.Advance(InactivityTimeout - time.Second - time.Nanosecond)
	assert.Equal(t, StateAuthenticated, f.mgr.State())

	f.clock.Advance(time.Nanosecond + InactivityGrace)
	assert.Equal(t, StateUnauthenticated, f.mgr.State())
}

func TestManager_ActivityDuringGraceIsIgnored(t *testing.T) {
	f := newManagerFixture(t, credentials.Demo{})
	f.login(t, "admin@escola.com", "admin123", false)

	f.clock.Advance(InactivityTimeout)
	require.Equal(t, StateExpiring, f.mgr.State())
	f.mgr.RecordActivity()
	f.clock.Advance(InactivityGrace)
	assert.Equal(t, StateUnauthenticated, f.mgr.State())
}

func TestManager_LogoutDuringGrace(t *testing.T) {
	f := newManagerFixture(t, credentials.Demo{})
	f.login(t, "admin@escola.com", "admin123", false)

	f.clock.Advance(InactivityTimeout)
	require.NoError(t, f.mgr.Logout(context.Background()))
	f.clock.Advance(InactivityGrace)
	assert.Equal(t, StateUnauthenticated, f.mgr.State())
	assert.Equal(t, ReasonLogout, f.lastEvent().Reason, "the grace timer must not fire after logout")
}

func TestManager_LoginDuringGraceReplacesSession(t *testing.T) {
	f := newManagerFixture(t, credentials.Demo{})
	f.login(t, "admin@escola.com", "admin123", false)
	f.clock.Advance(InactivityTimeout)

	sess := f.login(t, "professor@escola.com", "prof123", false)
	f.clock.Advance(InactivityGrace)

	got, ok := f.mgr.Current(context.Background())
	require.True(t, ok)
	assert.Equal(t, sess.ID, got.ID)
}

// =============================================================================
// RESTORE AND EXTERNAL CHANGE TESTS
// =============================================================================

func TestManager_RestoresRememberedSession(t *testing.T) {
	f := newManagerFixture(t, credentials.Demo{})
	sess := f.login(t, "professor@escola.com", "prof123", true)

	// A second client sharing the durable tier.
	other := NewManager(NewTieredStore(f.durable, NewMemoryBackend(), WithStoreClock(f.clock), WithStoreLogger(discardLogger())),
		credentials.Demo{}, WithClock(f.clock), WithLogger(discardLogger()))
	defer other.Close()

	var reasons []Reason
	other.Subscribe(func(ev Event) { reasons = append(reasons, ev.Reason) })

	got, ok := other.Current(context.Background())
	require.True(t, ok)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, StateAuthenticated, other.State())
	assert.Equal(t, []Reason{ReasonRestored}, reasons)

	// Logging out in the first client ends the second one on its next check.
	require.NoError(t, f.mgr.Logout(context.Background()))
	_, ok = other.Current(context.Background())
	assert.False(t, ok)
	assert.Equal(t, StateUnauthenticated, other.State())
	assert.Equal(t, []Reason{ReasonRestored, ReasonExternal}, reasons)
}

func TestManager_CorruptStoredSessionYieldsNoSession(t *testing.T) {
	f := newManagerFixture(t, credentials.Demo{})
	require.NoError(t, f.durable.Write(context.Background(), []byte(`{"id":`), time.Hour))
	require.NoError(t, f.ephemeral.Write(context.Background(), []byte(`garbage`), time.Hour))

	require.NotPanics(t, func() {
		_, ok := f.mgr.Current(context.Background())
		assert.False(t, ok)
	})
	assert.True(t, f.tiersEmpty(t))
	assert.False(t, f.gate.Visible("view_dashboard"))
}

func TestManager_TamperedPermissionsArePurged(t *testing.T) {
	f := newManagerFixture(t, credentials.Demo{})
	sess := testSession(security.RoleTeacher, true, testStart)
	sess.Permissions = []security.Permission{security.PermAll}
	data, err := encode(sess)
	require.NoError(t, err)
	require.NoError(t, f.durable.Write(context.Background(), data, time.Hour))

	assert.False(t, f.gate.HasPermission("delete_alunos"))
	assert.True(t, f.tiersEmpty(t))
}

func TestManager_SubscribeUnregister(t *testing.T) {
	f := newManagerFixture(t, credentials.Demo{})
	calls := 0
	unsubscribe := f.mgr.Subscribe(func(Event) { calls++ })
	f.login(t, "admin@escola.com", "admin123", true)
	unsubscribe()
	require.NoError(t, f.mgr.Logout(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "expiring", StateExpiring.String())
	assert.Equal(t, "inactivity", ReasonInactivity.String())
	assert.Equal(t, "unknown", State(99).String())
}

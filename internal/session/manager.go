// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/educagestao/educagestao-tui/internal/credentials"
	"github.com/educagestao/educagestao-tui/internal/security"
)

// ErrLoginInProgress is returned when Login is called while another login
// is still verifying credentials.
var ErrLoginInProgress = errors.New("login already in progress")

// grantReadTimeout bounds the store read behind CurrentGrant.
const grantReadTimeout = 2 * time.Second

// =============================================================================
// STATES AND EVENTS
// =============================================================================

// State is the authentication state of the client.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	// StateExpiring is the grace period between an inactivity timeout and the
	// destruction of the session.
	StateExpiring
	// StateExpired is transient; it is always followed by StateUnauthenticated.
	StateExpired
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateExpiring:
		return "expiring"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Reason explains a state change.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonLogin
	ReasonLoginFailed
	ReasonLogout
	ReasonHardExpiry
	ReasonInactivity
	// ReasonExternal is a change made by another process sharing the
	// durable tier, such as a logout from a second terminal.
	ReasonExternal
	// ReasonRestored is a remembered session picked up from the durable tier.
	ReasonRestored
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonLogin:
		return "login"
	case ReasonLoginFailed:
		return "login_failed"
	case ReasonLogout:
		return "logout"
	case ReasonHardExpiry:
		return "hard_expiry"
	case ReasonInactivity:
		return "inactivity"
	case ReasonExternal:
		return "external"
	case ReasonRestored:
		return "restored"
	default:
		return "none"
	}
}

// Event describes one state transition. Session is a copy of the session
// involved, or nil.
type Event struct {
	State    State
	Previous State
	Session  *Session
	Reason   Reason
	At       time.Time
}

// =============================================================================
// MANAGER
// =============================================================================

// LoginRequest is the login form submission.
type LoginRequest struct {
	Email    string
	Password string
	// Remember selects the durable tier and the 7 day lifetime.
	Remember bool
	// AccessMode is the login path chosen by the user. A mismatch with the
	// verified role fails the login with *security.RoleMismatchError.
	AccessMode security.AccessMode
}

// Manager owns the single active session of a client: login, logout, the
// hard expiry check and the inactivity watchdog. It implements
// security.GrantSource.
type Manager struct {
	store      Store
	verifier   credentials.Verifier
	clock      Clock
	logger     *slog.Logger
	inactivity time.Duration
	grace      time.Duration
	activity   rate.Sometimes
	watchdog   *watchdog

	// mu protects every field below.
	mu         sync.Mutex
	state      State
	current    *Session
	graceTimer Timer
	graceGen   uint64
	subs       map[int]func(Event)
	nextSub    int
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source. The store should use the same clock.
func WithClock(c Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithInactivityTimeout overrides InactivityTimeout.
func WithInactivityTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.inactivity = d
	}
}

// WithGracePeriod overrides InactivityGrace.
func WithGracePeriod(d time.Duration) Option {
	return func(m *Manager) {
		m.grace = d
	}
}

// NewManager creates a manager in StateUnauthenticated. Call Current to pick
// up a remembered session.
func NewManager(store Store, verifier credentials.Verifier, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		verifier:   verifier,
		clock:      SystemClock{},
		logger:     slog.Default(),
		inactivity: InactivityTimeout,
		grace:      InactivityGrace,
		activity:   rate.Sometimes{Interval: 30 * time.Second},
		subs:       make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.watchdog = newWatchdog(m.clock, m.inactivity, m.onInactivity)
	return m
}

// State returns the current state without consulting the store.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn for every transition. fn runs outside the manager
// lock, possibly on a timer goroutine. The returned func unregisters it.
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Login verifies the credentials and, on success, replaces any existing
// session with a new one. On failure the previous state is kept and nothing
// is written to the store.
func (m *Manager) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	var events []Event

	m.mu.Lock()
	if m.state == StateAuthenticating {
		m.mu.Unlock()
		return nil, ErrLoginInProgress
	}
	if m.state == StateExpiring {
		m.expireLocked(ctx, &events, ReasonInactivity)
	}
	m.watchdog.Stop()
	prev := m.current
	m.transitionLocked(&events, StateAuthenticating, ReasonLogin)
	m.mu.Unlock()
	m.publish(events)

	user, err := m.verify(ctx, req)
	if err == nil {
		err = security.CheckAccess(req.AccessMode, user.Role)
	}

	events = events[:0]
	m.mu.Lock()
	if err != nil {
		m.restoreLocked(&events, prev)
		m.mu.Unlock()
		m.publish(events)
		m.logger.Info("login_failed",
			slog.String("email", credentials.MaskEmail(credentials.NormalizeEmail(req.Email))),
			slog.Any("error", err))
		return nil, err
	}

	now := m.clock.Now()
	sess := &Session{
		ID:          newSessionID(),
		UserID:      user.ID,
		Name:        user.Name,
		Email:       user.Email,
		Role:        user.Role,
		Permissions: security.PermissionsFor(user.Role),
		CreatedAt:   now,
		ExpiresAt:   now.Add(TTLFor(req.Remember)),
		Persistent:  req.Remember,
	}
	if err := m.store.Save(ctx, sess); err != nil {
		if clearErr := m.store.Clear(ctx); clearErr != nil {
			m.logger.Error("session_store_clear_failed", slog.Any("error", clearErr))
		}
		m.current = nil
		m.transitionLocked(&events, StateUnauthenticated, ReasonLoginFailed)
		m.mu.Unlock()
		m.publish(events)
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	m.current = sess
	if !sess.Persistent {
		m.watchdog.Arm()
	}
	m.transitionLocked(&events, StateAuthenticated, ReasonLogin)
	m.mu.Unlock()
	m.publish(events)

	m.logger.Info("session_created",
		slog.String("session_id", sess.ID),
		slog.String("user_id", sess.UserID),
		slog.String("role", sess.Role.String()),
		slog.String("tier", TierName(sess.Persistent)),
		slog.Time("expires_at", sess.ExpiresAt))
	return sess.Clone(), nil
}

// verify validates the input and runs the verifier. Every rejection,
// including an inactive account, becomes security.ErrInvalidCredentials.
func (m *Manager) verify(ctx context.Context, req LoginRequest) (credentials.User, error) {
	in := credentials.LoginInput{Email: credentials.NormalizeEmail(req.Email), Password: req.Password}
	if err := in.Validate(); err != nil {
		return credentials.User{}, fmt.Errorf("%w: %v", security.ErrInvalidCredentials, err)
	}

	user, err := m.verifier.Verify(ctx, in.Email, in.Password)
	switch {
	case err == nil:
	case errors.Is(err, security.ErrVerifierUnavailable), ctx.Err() != nil:
		return credentials.User{}, err
	default:
		return credentials.User{}, security.ErrInvalidCredentials
	}
	if !user.Active() {
		return credentials.User{}, security.ErrInvalidCredentials
	}
	return user, nil
}

// restoreLocked returns to the state before a failed login.
func (m *Manager) restoreLocked(events *[]Event, prev *Session) {
	if prev == nil || prev.ExpiredAt(m.clock.Now()) {
		m.current = nil
		m.transitionLocked(events, StateUnauthenticated, ReasonLoginFailed)
		return
	}
	m.current = prev
	if !prev.Persistent {
		m.watchdog.Arm()
	}
	m.transitionLocked(events, StateAuthenticated, ReasonLoginFailed)
}

// Logout destroys the session in both tiers. Logging out without a session
// is a no-op.
func (m *Manager) Logout(ctx context.Context) error {
	var events []Event

	m.mu.Lock()
	m.watchdog.Stop()
	m.stopGraceLocked()
	err := m.store.Clear(ctx)
	ended := m.current
	if m.state != StateUnauthenticated {
		m.transitionLocked(&events, StateUnauthenticated, ReasonLogout)
	}
	m.current = nil
	m.mu.Unlock()
	m.publish(events)

	if ended != nil {
		m.logger.Info("session_destroyed",
			slog.String("session_id", ended.ID),
			slog.String("reason", ReasonLogout.String()))
	}
	if err != nil {
		return fmt.Errorf("failed to clear session store: %w", err)
	}
	return nil
}

// Current is the authentication check. It reads the store, purges a
// session past its hard expiry and returns a copy of the live session.
// Read failures and corrupt records yield false.
func (m *Manager) Current(ctx context.Context) (*Session, bool) {
	var events []Event
	defer func() { m.publish(events) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateAuthenticating || m.state == StateExpiring {
		return nil, false
	}

	sess, err := m.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			m.logger.Warn("session_read_failed", slog.Any("error", err))
			return nil, false
		}
		if m.current != nil {
			m.logger.Info("session_destroyed",
				slog.String("session_id", m.current.ID),
				slog.String("reason", ReasonExternal.String()))
			m.watchdog.Stop()
			m.transitionLocked(&events, StateUnauthenticated, ReasonExternal)
			m.current = nil
		}
		return nil, false
	}

	if sess.ExpiredAt(m.clock.Now()) {
		if err := m.store.Clear(ctx); err != nil {
			m.logger.Error("session_store_clear_failed", slog.Any("error", err))
		}
		m.logger.Info("session_expired",
			slog.String("session_id", sess.ID),
			slog.String("reason", ReasonHardExpiry.String()))
		m.watchdog.Stop()
		if m.current == nil {
			m.current = sess
		}
		m.transitionLocked(&events, StateExpired, ReasonHardExpiry)
		m.current = nil
		m.transitionLocked(&events, StateUnauthenticated, ReasonHardExpiry)
		return nil, false
	}

	if m.current == nil || m.current.ID != sess.ID {
		reason := ReasonRestored
		if m.current != nil {
			reason = ReasonExternal
		}
		m.current = sess
		m.watchdog.Stop()
		if !sess.Persistent {
			m.watchdog.Arm()
		}
		m.transitionLocked(&events, StateAuthenticated, reason)
		m.logger.Info("session_adopted",
			slog.String("session_id", sess.ID),
			slog.String("reason", reason.String()))
	}
	return sess.Clone(), true
}

// CurrentGrant implements security.GrantSource.
func (m *Manager) CurrentGrant() (security.Grant, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), grantReadTimeout)
	defer cancel()
	sess, ok := m.Current(ctx)
	if !ok {
		return security.Grant{}, false
	}
	return sess.Grant(), true
}

// RecordActivity restarts the inactivity deadline of an ephemeral session.
// It never moves the hard expiry, and activity during the grace period does
// not cancel the pending expiry.
func (m *Manager) RecordActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAuthenticated || m.current == nil || m.current.Persistent {
		return
	}
	m.watchdog.Arm()
	m.activity.Do(func() {
		m.logger.Debug("activity_recorded", slog.String("session_id", m.current.ID))
	})
}

// Close stops all timers. The store is left untouched.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchdog.Stop()
	m.stopGraceLocked()
	m.subs = make(map[int]func(Event))
}

// =============================================================================
// EXPIRY
// =============================================================================

// onInactivity runs when the watchdog deadline passes.
func (m *Manager) onInactivity(gen uint64) {
	var events []Event

	m.mu.Lock()
	if gen != m.watchdog.Generation() || m.state != StateAuthenticated || m.current == nil || m.current.Persistent {
		m.mu.Unlock()
		return
	}
	m.transitionLocked(&events, StateExpiring, ReasonInactivity)
	m.graceGen++
	graceGen := m.graceGen
	m.graceTimer = m.clock.AfterFunc(m.grace, func() {
		m.finishExpiry(graceGen)
	})
	sessionID := m.current.ID
	m.mu.Unlock()

	m.logger.Info("watchdog_fired",
		slog.String("session_id", sessionID),
		slog.Duration("grace", m.grace))
	m.publish(events)
}

// finishExpiry destroys the session once the grace period is over.
func (m *Manager) finishExpiry(graceGen uint64) {
	var events []Event

	m.mu.Lock()
	if graceGen != m.graceGen || m.state != StateExpiring {
		m.mu.Unlock()
		return
	}
	m.expireLocked(context.Background(), &events, ReasonInactivity)
	m.mu.Unlock()
	m.publish(events)
}

// expireLocked clears the store and moves through Expired to
// Unauthenticated.
func (m *Manager) expireLocked(ctx context.Context, events *[]Event, reason Reason) {
	m.stopGraceLocked()
	m.watchdog.Stop()
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error("session_store_clear_failed", slog.Any("error", err))
	}
	if m.current != nil {
		m.logger.Info("session_expired",
			slog.String("session_id", m.current.ID),
			slog.String("reason", reason.String()))
	}
	m.transitionLocked(events, StateExpired, reason)
	m.current = nil
	m.transitionLocked(events, StateUnauthenticated, reason)
}

func (m *Manager) stopGraceLocked() {
	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
	}
	m.graceGen++
}

// =============================================================================
// EVENTS
// =============================================================================

func (m *Manager) transitionLocked(events *[]Event, to State, reason Reason) {
	*events = append(*events, Event{
		State:    to,
		Previous: m.state,
		Session:  m.current.Clone(),
		Reason:   reason,
		At:       m.clock.Now(),
	})
	m.state = to
}

func (m *Manager) publish(events []Event) {
	if len(events) == 0 {
		return
	}
	m.mu.Lock()
	subs := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}

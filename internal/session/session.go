// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/educagestao/educagestao-tui/internal/security"
)

// Session lifetime constants.
const (
	// EphemeralTTL is the hard lifetime of a session that was not remembered.
	EphemeralTTL = 2 * time.Hour

	// PersistentTTL is the hard lifetime of a remembered session.
	PersistentTTL = 7 * 24 * time.Hour

	// InactivityTimeout ends an ephemeral session after this long without
	// qualifying activity.
	InactivityTimeout = 2 * time.Minute

	// InactivityGrace is how long the expiry notice is shown before the
	// session is destroyed.
	InactivityGrace = 3 * time.Second
)

// Session is the record of the active login.
type Session struct {
	ID          string                `json:"id"`
	UserID      string                `json:"user_id"`
	Name        string                `json:"name"`
	Email       string                `json:"email"`
	Role        security.Role         `json:"role"`
	Permissions []security.Permission `json:"permissions"`
	CreatedAt   time.Time             `json:"created_at"`
	ExpiresAt   time.Time             `json:"expires_at"`
	Persistent  bool                  `json:"persistent"`
}

// newSessionID returns a fresh session identifier.
func newSessionID() string {
	return "sess_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// TTLFor returns the hard lifetime of a session in the given tier.
func TTLFor(persistent bool) time.Duration {
	if persistent {
		return PersistentTTL
	}
	return EphemeralTTL
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Permissions = append([]security.Permission(nil), s.Permissions...)
	return &c
}

// Grant returns the authorization view of the session.
func (s *Session) Grant() security.Grant {
	return security.Grant{
		UserID:      s.UserID,
		Role:        s.Role,
		Permissions: append([]security.Permission(nil), s.Permissions...),
	}
}

// ExpiredAt reports whether the session is past its hard expiry at now.
func (s *Session) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Validate checks the record invariants. A record that fails validation is
// treated as corrupt.
func (s *Session) Validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: missing id", security.ErrCorruptSession)
	case s.UserID == "":
		return fmt.Errorf("%w: missing user id", security.ErrCorruptSession)
	case !s.Role.IsValid() && s.Role != security.RoleUnknown:
		return fmt.Errorf("%w: invalid role", security.ErrCorruptSession)
	case s.CreatedAt.IsZero() || s.ExpiresAt.IsZero():
		return fmt.Errorf("%w: missing timestamps", security.ErrCorruptSession)
	case !s.ExpiresAt.After(s.CreatedAt):
		return fmt.Errorf("%w: expiry before creation", security.ErrCorruptSession)
	case s.ExpiresAt.Sub(s.CreatedAt) > TTLFor(s.Persistent):
		return fmt.Errorf("%w: lifetime exceeds %s", security.ErrCorruptSession, TTLFor(s.Persistent))
	case !security.SamePermissions(s.Permissions, security.PermissionsFor(s.Role)):
		return fmt.Errorf("%w: permissions do not match role", security.ErrCorruptSession)
	}
	return nil
}

// encode serializes the session for a backend.
func encode(s *Session) ([]byte, error) {
	return json.Marshal(s)
}

// decode parses and validates a stored session.
func decode(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", security.ErrCorruptSession, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// =============================================================================
// INTROSPECTION
// =============================================================================

// Info is the user-facing summary of a session.
type Info struct {
	SessionID   string        `json:"session_id"`
	UserID      string        `json:"user_id"`
	Name        string        `json:"name"`
	Email       string        `json:"email"`
	Role        string        `json:"role"`
	RoleTitle   string        `json:"role_title"`
	Tier        string        `json:"tier"`
	LoginAt     time.Time     `json:"login_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
	Remaining   time.Duration `json:"remaining_ns"`
	RemainingAt string        `json:"remaining"`
	Inactivity  string        `json:"inactivity_timeout,omitempty"`
	Permissions []string      `json:"permissions"`
}

// Info summarizes the session as seen at now.
func (s *Session) Info(now time.Time) Info {
	remaining := s.ExpiresAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	info := Info{
		SessionID:   s.ID,
		UserID:      s.UserID,
		Name:        s.Name,
		Email:       s.Email,
		Role:        s.Role.String(),
		RoleTitle:   s.Role.DisplayName(),
		Tier:        TierName(s.Persistent),
		LoginAt:     s.CreatedAt,
		ExpiresAt:   s.ExpiresAt,
		Remaining:   remaining,
		RemainingAt: humanize.RelTime(now, s.ExpiresAt, "from now", "ago"),
	}
	if !s.Persistent {
		info.Inactivity = InactivityTimeout.String()
	}
	for _, p := range s.Permissions {
		info.Permissions = append(info.Permissions, string(p))
	}
	return info
}

// TierName names the storage tier of a session.
func TierName(persistent bool) string {
	if persistent {
		return "durable"
	}
	return "ephemeral"
}

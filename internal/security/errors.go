// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"errors"
	"fmt"
)

// Authentication and session errors. None of them is fatal: each one maps to
// a message shown to the user and a return to the login screen.
var (
	// ErrInvalidCredentials is returned for an unknown email, a wrong
	// password or an inactive account. The cause is never distinguished.
	ErrInvalidCredentials = errors.New("incorrect email or password")

	// ErrVerifierUnavailable is returned when no credential verifier could be
	// reached at all.
	ErrVerifierUnavailable = errors.New("authentication service unavailable")

	// ErrCorruptSession marks a stored session that could not be decoded or
	// failed validation. It is purged and never surfaced to the user.
	ErrCorruptSession = errors.New("stored session is corrupt")

	// ErrSessionExpired is reported when a session ended by hard expiry or
	// inactivity.
	ErrSessionExpired = errors.New("session expired")

	// ErrRoleMismatch is the sentinel wrapped by RoleMismatchError.
	ErrRoleMismatch = errors.New("access type does not match role")
)

// RoleMismatchError reports a login through an access path that does not
// fit the user's role. No session is created when it is returned.
type RoleMismatchError struct {
	Role Role
	Mode AccessMode
}

func (e *RoleMismatchError) Error() string {
	return fmt.Sprintf("%s: %s", ErrRoleMismatch.Error(), e.Message())
}

func (e *RoleMismatchError) Unwrap() error {
	return ErrRoleMismatch
}

// Message returns the explainer shown before redirecting to access selection.
func (e *RoleMismatchError) Message() string {
	switch e.Mode {
	case AccessAdmin:
		return fmt.Sprintf("You are signed up as %s. Use the education professional access.", e.Role.DisplayName())
	case AccessProfessional:
		return fmt.Sprintf("You are signed up as %s. Use the administrative access.", e.Role.DisplayName())
	default:
		return "Select the correct access type."
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package credentials verifies email and password pairs against a user
// directory and returns the identity the session manager builds a session on.
//
// Verifiers never reveal which part of a failed login was wrong: unknown
// email, wrong password and inactive account all yield
// security.ErrInvalidCredentials.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/educagestao/educagestao-tui/internal/security"
)

// Status is the account status stored in the directory.
type Status string

const (
	StatusActive   Status = "ativo"
	StatusInactive Status = "inativo"
)

// ParseStatus accepts English and directory spellings.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ativo", "active":
		return StatusActive, nil
	case "inativo", "inactive":
		return StatusInactive, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// User is a verified identity.
type User struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Email  string        `json:"email"`
	Role   security.Role `json:"role"`
	Status Status        `json:"status"`
}

// Active reports whether the account may authenticate.
func (u User) Active() bool {
	return u.Status == StatusActive
}

// Verifier checks a credential pair.
type Verifier interface {
	// Verify returns the user on success, security.ErrInvalidCredentials on a
	// rejected pair and an error wrapping security.ErrVerifierUnavailable when
	// the backing directory cannot be reached.
	Verify(ctx context.Context, email, password string) (User, error)
}

// ErrUnknownAccount is returned by a verifier that holds no account for the
// email. It reads as security.ErrInvalidCredentials to every caller; only a
// Chain tells it apart and asks the next verifier.
var ErrUnknownAccount error = unknownAccountError{}

type unknownAccountError struct{}

func (unknownAccountError) Error() string { return security.ErrInvalidCredentials.Error() }
func (unknownAccountError) Unwrap() error { return security.ErrInvalidCredentials }

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, email, password string) (User, error)

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, email, password string) (User, error) {
	return f(ctx, email, password)
}

// =============================================================================
// EMAIL NORMALIZATION
// =============================================================================

var emailFolder = cases.Fold()

// NormalizeEmail trims, NFC-normalizes and case-folds an email address so
// lookups do not depend on how the user typed it.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	email = norm.NFC.String(email)
	return emailFolder.String(email)
}

// MaskEmail hides most of the local part for logging.
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// =============================================================================
// CHAIN
// =============================================================================

// Chain tries each verifier in order and returns the first success.
// Only an unreachable verifier or one that does not know the email passes
// the attempt on. Any other rejection ends the chain, so a later verifier
// never overrides a wrong password or an inactive account. If no verifier
// could be reached, the result wraps security.ErrVerifierUnavailable.
type Chain []Verifier

// Verify implements Verifier.
func (c Chain) Verify(ctx context.Context, email, password string) (User, error) {
	reached := false
	var lastUnavailable error
	for _, v := range c {
		user, err := v.Verify(ctx, email, password)
		if err == nil {
			return user, nil
		}
		if ctx.Err() != nil {
			return User{}, ctx.Err()
		}
		switch {
		case errors.Is(err, ErrUnknownAccount):
			reached = true
		case errors.Is(err, security.ErrVerifierUnavailable):
			lastUnavailable = err
		default:
			return User{}, security.ErrInvalidCredentials
		}
	}
	if reached || lastUnavailable == nil {
		return User{}, security.ErrInvalidCredentials
	}
	return User{}, lastUnavailable
}

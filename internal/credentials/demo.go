// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credentials

import (
	"context"
	"crypto/subtle"

	"github.com/educagestao/educagestao-tui/internal/security"
)

// demoAccount is a built-in demonstration login.
type demoAccount struct {
	id       string
	name     string
	password string
	role     security.Role
}

// demoAccounts are the demonstration logins shipped with the login page.
var demoAccounts = map[string]demoAccount{
	"admin@escola.com":      {id: "1", name: "Administrador", password: "admin123", role: security.RoleAdmin},
	"professor@escola.com":  {id: "2", name: "Professor Silva", password: "prof123", role: security.RoleTeacher},
	"secretaria@escola.com": {id: "3", name: "Secretária Ana", password: "sec123", role: security.RoleSecretary},
}

// Demo verifies against the fixed demonstration accounts. It is meant for
// evaluation installs with no directory or API.
type Demo struct{}

// Verify implements Verifier.
func (Demo) Verify(ctx context.Context, email, password string) (User, error) {
	email = NormalizeEmail(email)
	acct, ok := demoAccounts[email]
	if !ok {
		return User{}, ErrUnknownAccount
	}
	if subtle.ConstantTimeCompare([]byte(acct.password), []byte(password)) != 1 {
		return User{}, security.ErrInvalidCredentials
	}
	return User{
		ID:     acct.id,
		Name:   acct.name,
		Email:  email,
		Role:   acct.role,
		Status: StatusActive,
	}, nil
}

// DemoEmails lists the demonstration logins.
func DemoEmails() []string {
	return []string{"admin@escola.com", "professor@escola.com", "secretaria@escola.com"}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"fmt"
	"strings"
)

// AccessMode is the login path chosen on the access selection screen.
// It is advisory: it never widens or narrows the catalog entry of a role.
type AccessMode int

const (
	// AccessAny accepts every role.
	AccessAny AccessMode = iota
	// AccessAdmin is the administrative path (admin, director).
	AccessAdmin
	// AccessProfessional is the path for coordinators, teachers and secretaries.
	AccessProfessional
)

// String returns the mode name used in flags and config.
func (m AccessMode) String() string {
	switch m {
	case AccessAdmin:
		return "admin"
	case AccessProfessional:
		return "professional"
	default:
		return "any"
	}
}

// ParseAccessMode parses a mode name. The empty string is AccessAny.
func ParseAccessMode(s string) (AccessMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return AccessAny, nil
	case "admin", "administrativo":
		return AccessAdmin, nil
	case "professional", "profissional":
		return AccessProfessional, nil
	default:
		return AccessAny, fmt.Errorf("unknown access mode %q", s)
	}
}

// CheckAccess returns a *RoleMismatchError when role does not belong on the
// chosen path.
func CheckAccess(mode AccessMode, role Role) error {
	switch mode {
	case AccessAdmin:
		if !role.IsSuperuser() {
			return &RoleMismatchError{Role: role, Mode: mode}
		}
	case AccessProfessional:
		if role.IsSuperuser() {
			return &RoleMismatchError{Role: role, Mode: mode}
		}
	}
	return nil
}

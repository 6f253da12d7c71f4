// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package security provides the role model, the role-permission catalog and
// the permission gate used by every screen and command of educagestao.
//
// The catalog is a compile-time constant: roles are closed, tokens are opaque
// strings of the form <action>_<resource> plus the wildcard "all".
package security

import (
	"fmt"
	"strings"
)

// =============================================================================
// ROLES
// =============================================================================

// Role is the closed set of staff roles known to the system.
type Role int

const (
	// RoleUnknown is the zero value. It never authenticates as anything more
	// than the catalog's safe default.
	RoleUnknown Role = iota
	// RoleAdmin is the system administrator (superuser).
	RoleAdmin
	// RoleDirector is the school director (superuser, equivalent to admin).
	RoleDirector
	// RoleCoordinator manages students, classes, grades and attendance.
	RoleCoordinator
	// RoleTeacher records grades and attendance.
	RoleTeacher
	// RoleSecretary manages student records and enrollments.
	RoleSecretary
)

// String returns the canonical English role name.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleDirector:
		return "director"
	case RoleCoordinator:
		return "coordinator"
	case RoleTeacher:
		return "teacher"
	case RoleSecretary:
		return "secretary"
	default:
		return "unknown"
	}
}

// Code returns the role code stored in the user directory ("cargo").
func (r Role) Code() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleDirector:
		return "diretor"
	case RoleCoordinator:
		return "coordenador"
	case RoleTeacher:
		return "professor"
	case RoleSecretary:
		return "secretaria"
	default:
		return ""
	}
}

// DisplayName returns the title shown to users.
func (r Role) DisplayName() string {
	switch r {
	case RoleAdmin:
		return "Administrador"
	case RoleDirector:
		return "Diretor"
	case RoleCoordinator:
		return "Coordenador"
	case RoleTeacher:
		return "Professor"
	case RoleSecretary:
		return "Secretaria"
	default:
		return "Unknown"
	}
}

// Color returns the hex color associated with the role badge.
func (r Role) Color() string {
	switch r {
	case RoleAdmin, RoleDirector:
		return "#dc2626"
	case RoleCoordinator:
		return "#2563eb"
	case RoleTeacher:
		return "#16a34a"
	case RoleSecretary:
		return "#9333ea"
	default:
		return "#64748b"
	}
}

// IsSuperuser reports whether the role is granted every capability.
func (r Role) IsSuperuser() bool {
	return r == RoleAdmin || r == RoleDirector
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	return r >= RoleAdmin && r <= RoleSecretary
}

// MarshalText encodes the role by its English name. RoleUnknown encodes as
// "unknown" so a session holding the catalog default can be stored.
func (r Role) MarshalText() ([]byte, error) {
	if !r.IsValid() && r != RoleUnknown {
		return nil, fmt.Errorf("cannot encode role %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText accepts English names, directory codes and "unknown".
// Any other spelling is an error.
func (r *Role) UnmarshalText(text []byte) error {
	if string(text) == "unknown" {
		*r = RoleUnknown
		return nil
	}
	role := ParseRole(string(text))
	if role == RoleUnknown {
		return fmt.Errorf("unknown role %q", string(text))
	}
	*r = role
	return nil
}

// roleAliases maps every accepted spelling to a role.
var roleAliases = map[string]Role{
	"admin":          RoleAdmin,
	"administrator":  RoleAdmin,
	"administrador":  RoleAdmin,
	"director":       RoleDirector,
	"diretor":        RoleDirector,
	"coordinator":    RoleCoordinator,
	"coordenador":    RoleCoordinator,
	"teacher":        RoleTeacher,
	"professor":      RoleTeacher,
	"secretary":      RoleSecretary,
	"secretaria":     RoleSecretary,
	"secretário":     RoleSecretary,
	"secretária":     RoleSecretary,
}

// ParseRole resolves a role name or code. Unrecognized input yields RoleUnknown.
func ParseRole(s string) Role {
	if role, ok := roleAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return role
	}
	return RoleUnknown
}

// AllRoles returns the known roles in catalog order.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleDirector, RoleCoordinator, RoleTeacher, RoleSecretary}
}

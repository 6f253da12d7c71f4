// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

// =============================================================================
// PERMISSION GATE
// =============================================================================

// Grant is the authorization view of a live session.
type Grant struct {
	UserID      string
	Role        Role
	Permissions []Permission
}

// Allows reports whether the grant includes p.
func (g Grant) Allows(p Permission) bool {
	return Allows(g.Permissions, p)
}

// GrantSource yields the grant of the current live session, if any.
// Implementations must apply their own validity checks on every call.
type GrantSource interface {
	CurrentGrant() (Grant, bool)
}

// Gate answers can-do and visibility questions against the live session.
// It fails closed: with no session, every answer is false.
//
// Visibility is a user-experience filter. Operations that change school
// records must check permissions again where they execute.
type Gate struct {
	source GrantSource
}

// NewGate creates a gate over source.
func NewGate(source GrantSource) *Gate {
	return &Gate{source: source}
}

// HasPermission reports whether the current session grants token.
func (g *Gate) HasPermission(token Permission) bool {
	grant, ok := g.source.CurrentGrant()
	if !ok {
		return false
	}
	return grant.Allows(token)
}

// IsSuperuser reports whether the current session belongs to an admin or
// director.
func (g *Gate) IsSuperuser() bool {
	grant, ok := g.source.CurrentGrant()
	if !ok {
		return false
	}
	return grant.Role.IsSuperuser() || grant.Allows(PermAll)
}

// Visible reports whether an element tagged with tag should be shown.
// Tags are tokens ("create_alunos") or action:resource pairs ("create:students").
// Unknown tags are hidden.
func (g *Gate) Visible(tag string) bool {
	token, ok := ParsePermission(tag)
	if !ok {
		return false
	}
	return g.HasPermission(token)
}

// VisibleFor reports whether action on resource should be shown.
func (g *Gate) VisibleFor(action Action, resource string) bool {
	token := Token(action, resource)
	if !token.IsKnown() {
		return false
	}
	return g.HasPermission(token)
}

// Filter returns the subset of tags that are visible, in input order.
func (g *Gate) Filter(tags ...string) []string {
	grant, ok := g.source.CurrentGrant()
	if !ok {
		return nil
	}
	var out []string
	for _, tag := range tags {
		token, known := ParsePermission(tag)
		if known && grant.Allows(token) {
			out = append(out, tag)
		}
	}
	return out
}

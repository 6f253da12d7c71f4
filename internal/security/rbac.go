// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"sort"
	"strings"
)

// =============================================================================
// CAPABILITY TOKENS
// =============================================================================

// Permission is an opaque capability token such as "create_alunos".
type Permission string

// PermAll is the wildcard token. A set containing it grants every token.
const PermAll Permission = "all"

// PermViewDashboard is granted to every authenticated role.
const PermViewDashboard Permission = "view_dashboard"

// Action is the verb half of a capability token.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Actions lists the actions in display order.
var Actions = []Action{ActionView, ActionCreate, ActionEdit, ActionDelete}

// Resources are the school areas a token may refer to.
const (
	ResourceDashboard   = "dashboard"
	ResourceStudents    = "alunos"
	ResourceTeachers    = "professores"
	ResourceClasses     = "turmas"
	ResourceGrades      = "notas"
	ResourceAttendance  = "frequencia"
	ResourceEvents      = "eventos"
	ResourceReports     = "relatorios"
	ResourceEnrollments = "matriculas"
)

// Resources lists the record resources in menu order. The dashboard is not
// included because it only has a view action.
var Resources = []string{
	ResourceStudents,
	ResourceTeachers,
	ResourceClasses,
	ResourceGrades,
	ResourceAttendance,
	ResourceEvents,
	ResourceReports,
	ResourceEnrollments,
}

// resourceAliases maps English resource names onto catalog names.
var resourceAliases = map[string]string{
	"students":    ResourceStudents,
	"teachers":    ResourceTeachers,
	"classes":     ResourceClasses,
	"grades":      ResourceGrades,
	"attendance":  ResourceAttendance,
	"events":      ResourceEvents,
	"reports":     ResourceReports,
	"enrollments": ResourceEnrollments,
	"frequência":  ResourceAttendance,
	"relatórios":  ResourceReports,
	"matrículas":  ResourceEnrollments,
}

// Token builds the capability token for an action on a resource.
func Token(action Action, resource string) Permission {
	return Permission(string(action) + "_" + CanonicalResource(resource))
}

// CanonicalResource resolves a resource alias to its catalog name.
func CanonicalResource(resource string) string {
	resource = strings.ToLower(strings.TrimSpace(resource))
	if canonical, ok := resourceAliases[resource]; ok {
		return canonical
	}
	return resource
}

// vocabulary is every token the system recognizes.
var vocabulary = buildVocabulary()

func buildVocabulary() map[Permission]struct{} {
	v := map[Permission]struct{}{
		PermAll:           {},
		PermViewDashboard: {},
	}
	for _, resource := range Resources {
		for _, action := range Actions {
			v[Token(action, resource)] = struct{}{}
		}
	}
	return v
}

// IsKnown reports whether p is a recognized token.
func (p Permission) IsKnown() bool {
	_, ok := vocabulary[p]
	return ok
}

// ParsePermission normalizes a token or an "action:resource" tag.
// It returns false when the input does not name a known token.
func ParsePermission(tag string) (Permission, bool) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return "", false
	}
	if Permission(tag) == PermAll {
		return PermAll, true
	}

	var action, resource string
	if i := strings.IndexByte(tag, ':'); i >= 0 {
		action, resource = tag[:i], tag[i+1:]
	} else if i := strings.IndexByte(tag, '_'); i >= 0 {
		action, resource = tag[:i], tag[i+1:]
	} else {
		return "", false
	}

	p := Token(Action(action), resource)
	if !p.IsKnown() {
		return "", false
	}
	return p, true
}

// =============================================================================
// ROLE PERMISSIONS MATRIX
// =============================================================================

// crud expands a resource into its four action tokens.
func crud(resource string) []Permission {
	out := make([]Permission, 0, len(Actions))
	for _, action := range Actions {
		out = append(out, Token(action, resource))
	}
	return out
}

func concat(groups ...[]Permission) []Permission {
	var out []Permission
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// rolePermissions is the role-permission catalog.
var rolePermissions = map[Role][]Permission{
	RoleAdmin:    {PermAll},
	RoleDirector: {PermAll},
	RoleCoordinator: concat(
		[]Permission{PermViewDashboard},
		crud(ResourceStudents),
		[]Permission{Token(ActionView, ResourceTeachers)},
		crud(ResourceClasses),
		crud(ResourceGrades),
		crud(ResourceAttendance),
		crud(ResourceEvents),
		[]Permission{Token(ActionView, ResourceReports)},
		crud(ResourceEnrollments),
	),
	RoleTeacher: {
		PermViewDashboard,
		Token(ActionView, ResourceStudents),
		Token(ActionView, ResourceClasses),
		Token(ActionView, ResourceGrades), Token(ActionCreate, ResourceGrades), Token(ActionEdit, ResourceGrades),
		Token(ActionView, ResourceAttendance), Token(ActionCreate, ResourceAttendance), Token(ActionEdit, ResourceAttendance),
		Token(ActionView, ResourceEvents),
	},
	RoleSecretary: {
		PermViewDashboard,
		Token(ActionView, ResourceStudents), Token(ActionCreate, ResourceStudents), Token(ActionEdit, ResourceStudents),
		Token(ActionView, ResourceTeachers),
		Token(ActionView, ResourceClasses),
		Token(ActionView, ResourceEnrollments), Token(ActionCreate, ResourceEnrollments),
		Token(ActionEdit, ResourceEnrollments), Token(ActionDelete, ResourceEnrollments),
	},
}

// defaultPermissions is granted to a role the catalog does not know.
// Only the landing dashboard is visible; nothing can be changed.
var defaultPermissions = []Permission{PermViewDashboard}

// PermissionsFor returns the catalog entry for role, sorted.
// The result is a fresh slice; callers may keep or modify it.
func PermissionsFor(role Role) []Permission {
	perms, ok := rolePermissions[role]
	if !ok {
		perms = defaultPermissions
	}
	out := make([]Permission, len(perms))
	copy(out, perms)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SamePermissions reports whether a and b hold the same tokens, ignoring order.
func SamePermissions(a, b []Permission) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[Permission]int, len(a))
	for _, p := range a {
		seen[p]++
	}
	for _, p := range b {
		if seen[p] == 0 {
			return false
		}
		seen[p]--
	}
	return true
}

// Allows reports whether a permission set grants p. The wildcard absorbs
// every token. Aliased tokens ("delete_students") match their catalog name.
func Allows(perms []Permission, p Permission) bool {
	if canonical, ok := ParsePermission(string(p)); ok {
		p = canonical
	}
	for _, have := range perms {
		if have == PermAll || have == p {
			return true
		}
	}
	return false
}

// =============================================================================
// ROLE DESCRIPTIONS
// =============================================================================

// RoleInfo describes a role for display.
type RoleInfo struct {
	Role        string       `json:"role"`
	Code        string       `json:"code"`
	Title       string       `json:"title"`
	Color       string       `json:"color"`
	Superuser   bool         `json:"superuser"`
	Highlights  []string     `json:"highlights"`
	Permissions []Permission `json:"permissions"`
}

var roleHighlights = map[Role][]string{
	RoleAdmin: {
		"+ Full system access",
		"+ Manage users",
		"+ Every feature",
	},
	RoleDirector: {
		"+ Full system access",
		"+ Manage users",
		"+ Every feature",
	},
	RoleCoordinator: {
		"+ Create/edit/delete students",
		"+ Manage classes",
		"+ Record grades (all classes)",
		"+ Record attendance (all classes)",
		"+ Create events",
		"+ View reports",
		"- Manage users",
	},
	RoleTeacher: {
		"+ View students (own classes)",
		"+ Record grades (own classes)",
		"+ Record attendance (own classes)",
		"+ View calendar",
		"- Create/edit/delete students",
		"- Create events",
		"- View reports",
	},
	RoleSecretary: {
		"+ Create/edit students",
		"+ Manage enrollments",
		"+ View teachers",
		"- Delete students",
		"- Edit teachers",
		"- Record grades",
		"- Record attendance",
	},
}

// Describe returns the display description of role.
func Describe(role Role) RoleInfo {
	highlights := append([]string(nil), roleHighlights[role]...)
	return RoleInfo{
		Role:        role.String(),
		Code:        role.Code(),
		Title:       role.DisplayName(),
		Color:       role.Color(),
		Superuser:   role.IsSuperuser(),
		Highlights:  highlights,
		Permissions: PermissionsFor(role),
	}
}

// DescribeMarkdown renders the role description as markdown for glamour.
func DescribeMarkdown(role Role) string {
	info := Describe(role)
	var b strings.Builder
	b.WriteString("# " + info.Title + "\n\n")
	for _, h := range info.Highlights {
		switch {
		case strings.HasPrefix(h, "+ "):
			b.WriteString("- **yes** " + strings.TrimPrefix(h, "+ ") + "\n")
		case strings.HasPrefix(h, "- "):
			b.WriteString("- ~~no~~ " + strings.TrimPrefix(h, "- ") + "\n")
		}
	}
	b.WriteString("\n## Capabilities\n\n")
	for _, p := range info.Permissions {
		b.WriteString("- `" + string(p) + "`\n")
	}
	return b.String()
}

// Package policy holds the declarative role-permission matrix: who may
// direct-message whom, which records a viewer may see, and which roles
// may publish or review. Rules are value tables evaluated by lookup so
// every role pair is individually testable.
package policy

import "github.com/ssn-coe/rcms-api/internal/models"

// Scope is the record-visibility level granted to a viewer.
type Scope int

const (
	// ScopeAll grants visibility into every user's records.
	ScopeAll Scope = iota
	// ScopeDepartment restricts visibility to the viewer's own department.
	ScopeDepartment
	// ScopeOwn restricts visibility to the viewer's own records.
	ScopeOwn
)

// messagingMatrix is keyed by sender role; the value set holds the
// receiver roles the sender may direct-message. admin and faculty are
// deliberately absent from each other's sets: they communicate only
// through hod/principal intermediaries. The rule is stated per sender,
// so both directions of a pair are looked up independently.
var messagingMatrix = map[models.Role]map[models.Role]bool{
	models.RoleHOD: {
		models.RoleAdmin: true, models.RolePrincipal: true,
		models.RoleHOD: true, models.RoleFaculty: true,
	},
	models.RolePrincipal: {
		models.RoleAdmin: true, models.RolePrincipal: true,
		models.RoleHOD: true, models.RoleFaculty: true,
	},
	models.RoleFaculty: {
		models.RoleHOD: true, models.RolePrincipal: true,
	},
	models.RoleAdmin: {
		models.RoleHOD: true, models.RolePrincipal: true,
	},
}

// CanMessage reports whether sender may direct-message receiver.
func CanMessage(sender, receiver models.Role) bool {
	return messagingMatrix[sender][receiver]
}

// visibilityTable maps a viewer role to its record scope.
var visibilityTable = map[models.Role]Scope{
	models.RoleAdmin:     ScopeAll,
	models.RolePrincipal: ScopeAll,
	models.RoleHOD:       ScopeDepartment,
	models.RoleFaculty:   ScopeOwn,
}

// VisibleScope returns the record-visibility scope for a viewer role.
// Unknown roles fall back to ScopeOwn.
func VisibleScope(role models.Role) Scope {
	if s, ok := visibilityTable[role]; ok {
		return s
	}
	return ScopeOwn
}

// CanPublishCirculars reports whether the role may publish, update, or
// delete circulars.
func CanPublishCirculars(role models.Role) bool {
	return role == models.RoleAdmin || role == models.RolePrincipal
}

// CanReviewSubmissions reports whether the role may approve or reject
// submitted proofs.
func CanReviewSubmissions(role models.Role) bool {
	return role == models.RoleAdmin || role == models.RolePrincipal || role == models.RoleHOD
}

// CanManageUsers reports whether the role may toggle or delete accounts.
func CanManageUsers(role models.Role) bool {
	return role == models.RoleAdmin || role == models.RolePrincipal
}

// CanListUsers reports whether the role may list other users at all.
// Faculty is denied entirely; hod listings are then narrowed by scope.
func CanListUsers(role models.Role) bool {
	return role != models.RoleFaculty
}

// ChatGroups returns the group names visible to a user: the broadcast
// group always, the user's own department when set, and every
// department for admin/principal.
func ChatGroups(user *models.User) []string {
	groups := []string{models.BroadcastGroup}
	seen := map[string]bool{models.BroadcastGroup: true}
	if dept := user.DepartmentOrEmpty(); dept != "" {
		groups = append(groups, dept)
		seen[dept] = true
	}
	if user.Role == models.RoleAdmin || user.Role == models.RolePrincipal {
		for _, d := range models.Departments {
			if !seen[d] {
				groups = append(groups, d)
				seen[d] = true
			}
		}
	}
	return groups
}

// CanPostToGroup reports whether the user belongs to the named group.
func CanPostToGroup(user *models.User, group string) bool {
	for _, g := range ChatGroups(user) {
		if g == group {
			return true
		}
	}
	return false
}

package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ssn-coe/rcms-api/internal/models"
)

func TestCanMessageMatrix(t *testing.T) {
	cases := []struct {
		sender   models.Role
		receiver models.Role
		allowed  bool
	}{
		{models.RoleHOD, models.RoleAdmin, true},
		{models.RoleHOD, models.RolePrincipal, true},
		{models.RoleHOD, models.RoleHOD, true},
		{models.RoleHOD, models.RoleFaculty, true},
		{models.RolePrincipal, models.RoleAdmin, true},
		{models.RolePrincipal, models.RolePrincipal, true},
		{models.RolePrincipal, models.RoleHOD, true},
		{models.RolePrincipal, models.RoleFaculty, true},
		{models.RoleFaculty, models.RoleHOD, true},
		{models.RoleFaculty, models.RolePrincipal, true},
		{models.RoleFaculty, models.RoleAdmin, false},
		{models.RoleFaculty, models.RoleFaculty, false},
		{models.RoleAdmin, models.RoleHOD, true},
		{models.RoleAdmin, models.RolePrincipal, true},
		{models.RoleAdmin, models.RoleFaculty, false},
		{models.RoleAdmin, models.RoleAdmin, false},
	}

	for _, tc := range cases {
		assert.Equalf(t, tc.allowed, CanMessage(tc.sender, tc.receiver),
			"%s -> %s", tc.sender, tc.receiver)
	}
}

func TestCanMessageHODAndPrincipalReachEveryone(t *testing.T) {
	for _, receiver := range models.Roles {
		assert.True(t, CanMessage(models.RoleHOD, receiver))
		assert.True(t, CanMessage(models.RolePrincipal, receiver))
	}
}

func TestVisibleScope(t *testing.T) {
	assert.Equal(t, ScopeAll, VisibleScope(models.RoleAdmin))
	assert.Equal(t, ScopeAll, VisibleScope(models.RolePrincipal))
	assert.Equal(t, ScopeDepartment, VisibleScope(models.RoleHOD))
	assert.Equal(t, ScopeOwn, VisibleScope(models.RoleFaculty))
	assert.Equal(t, ScopeOwn, VisibleScope(models.Role("intern")))
}

func TestRoleGates(t *testing.T) {
	assert.True(t, CanPublishCirculars(models.RoleAdmin))
	assert.True(t, CanPublishCirculars(models.RolePrincipal))
	assert.False(t, CanPublishCirculars(models.RoleHOD))
	assert.False(t, CanPublishCirculars(models.RoleFaculty))

	assert.True(t, CanReviewSubmissions(models.RoleHOD))
	assert.False(t, CanReviewSubmissions(models.RoleFaculty))

	assert.False(t, CanListUsers(models.RoleFaculty))
	assert.True(t, CanListUsers(models.RoleHOD))
}

func TestChatGroups(t *testing.T) {
	cse := "CSE"

	faculty := &models.User{Role: models.RoleFaculty, Department: &cse}
	assert.Equal(t, []string{models.BroadcastGroup, "CSE"}, ChatGroups(faculty))

	// A user without a department only sees the broadcast group.
	admin := &models.User{Role: models.RoleAdmin}
	groups := ChatGroups(admin)
	assert.Equal(t, models.BroadcastGroup, groups[0])
	assert.Len(t, groups, len(models.Departments)+1)

	hod := &models.User{Role: models.RoleHOD, Department: &cse}
	assert.Equal(t, []string{models.BroadcastGroup, "CSE"}, ChatGroups(hod))

	assert.True(t, CanPostToGroup(faculty, models.BroadcastGroup))
	assert.True(t, CanPostToGroup(faculty, "CSE"))
	assert.False(t, CanPostToGroup(faculty, "ECE"))
	assert.True(t, CanPostToGroup(admin, "ECE"))
}

package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssn-coe/rcms-api/internal/models"
	appErrors "github.com/ssn-coe/rcms-api/pkg/errors"
)

type mockUserAdminRepo struct {
	users      map[string]*models.User
	created    *models.User
	setActive  map[string]bool
	deleted    []string
	lastFilter models.UserFilter
	listed     []models.User
}

func newMockUserAdminRepo(users ...*models.User) *mockUserAdminRepo {
	m := &mockUserAdminRepo{users: make(map[string]*models.User), setActive: make(map[string]bool)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserAdminRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserAdminRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserAdminRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.lastFilter = filter
	return m.listed, len(m.listed), nil
}

func (m *mockUserAdminRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = "new-user"
	m.users[user.ID] = user
	m.created = user
	return nil
}

func (m *mockUserAdminRepo) SetActive(ctx context.Context, id string, active bool) error {
	m.setActive[id] = active
	return nil
}

func (m *mockUserAdminRepo) DeleteWithCleanup(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.users, id)
	return nil
}

func TestUserListFacultyDenied(t *testing.T) {
	repo := newMockUserAdminRepo()
	svc := NewUserService(repo, &mockActivityRecorder{}, nil, nil)

	_, _, err := svc.List(context.Background(), &models.JWTClaims{UserID: "fac-1", Role: models.RoleFaculty}, models.UserFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPermissionDenied.Code, appErrors.FromError(err).Code)
}

func TestUserListHodScopedToDepartment(t *testing.T) {
	repo := newMockUserAdminRepo()
	svc := NewUserService(repo, &mockActivityRecorder{}, nil, nil)

	_, _, err := svc.List(context.Background(), &models.JWTClaims{UserID: "hod-1", Role: models.RoleHOD, Department: strPtr("CSE")}, models.UserFilter{})
	require.NoError(t, err)
	require.NotNil(t, repo.lastFilter.Department)
	assert.Equal(t, "CSE", *repo.lastFilter.Department)
}

func TestUserCreateByAdmin(t *testing.T) {
	repo := newMockUserAdminRepo()
	activity := &mockActivityRecorder{}
	svc := NewUserService(repo, activity, nil, nil)

	user, err := svc.Create(context.Background(), &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin}, models.CreateUserRequest{
		Name: "New HoD", Email: "Hod.ECE@College.edu", Password: "password", Role: models.RoleHOD, Department: "ECE",
	})
	require.NoError(t, err)
	assert.Equal(t, "hod.ece@college.edu", user.Email)
	assert.True(t, user.Active)
	assert.True(t, user.Verified)
	require.NotNil(t, user.Department)
	assert.Equal(t, "ECE", *user.Department)

	require.Len(t, activity.entries, 1)
	assert.Equal(t, models.ActivityActionCreateUser, activity.entries[0].Action)
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	existing := &models.User{ID: "u1", Email: "taken@college.edu", Role: models.RoleFaculty}
	repo := newMockUserAdminRepo(existing)
	svc := NewUserService(repo, &mockActivityRecorder{}, nil, nil)

	_, err := svc.Create(context.Background(), &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin}, models.CreateUserRequest{
		Name: "Dup", Email: "taken@college.edu", Password: "password", Role: models.RolePrincipal,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserCreateDeniedForHod(t *testing.T) {
	repo := newMockUserAdminRepo()
	svc := NewUserService(repo, &mockActivityRecorder{}, nil, nil)

	_, err := svc.Create(context.Background(), &models.JWTClaims{UserID: "hod-1", Role: models.RoleHOD, Department: strPtr("CSE")}, models.CreateUserRequest{
		Name: "X", Email: "x@college.edu", Password: "password", Role: models.RoleFaculty, Department: "CSE",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPermissionDenied.Code, appErrors.FromError(err).Code)
}

func TestUserToggle(t *testing.T) {
	target := &models.User{ID: "u1", Email: "fac@college.edu", Role: models.RoleFaculty, Active: true}
	repo := newMockUserAdminRepo(target)
	svc := NewUserService(repo, &mockActivityRecorder{}, nil, nil)

	user, err := svc.Toggle(context.Background(), &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin}, "u1")
	require.NoError(t, err)
	assert.False(t, user.Active)
	assert.False(t, repo.setActive["u1"])
}

func TestUserToggleSelfDenied(t *testing.T) {
	admin := &models.User{ID: "adm-1", Email: "admin@college.edu", Role: models.RoleAdmin, Active: true}
	repo := newMockUserAdminRepo(admin)
	svc := NewUserService(repo, &mockActivityRecorder{}, nil, nil)

	_, err := svc.Toggle(context.Background(), &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin}, "adm-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserDeleteCascades(t *testing.T) {
	target := &models.User{ID: "u1", Email: "fac@college.edu", Role: models.RoleFaculty}
	repo := newMockUserAdminRepo(target)
	activity := &mockActivityRecorder{}
	svc := NewUserService(repo, activity, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin}, "u1"))
	assert.Equal(t, []string{"u1"}, repo.deleted)
	require.Len(t, activity.entries, 1)
	assert.Equal(t, models.ActivityActionDeleteUser, activity.entries[0].Action)
}

func TestUserDeleteSelfDenied(t *testing.T) {
	admin := &models.User{ID: "adm-1", Email: "admin@college.edu", Role: models.RoleAdmin}
	repo := newMockUserAdminRepo(admin)
	svc := NewUserService(repo, &mockActivityRecorder{}, nil, nil)

	err := svc.Delete(context.Background(), &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin}, "adm-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserDeleteMissing(t *testing.T) {
	repo := newMockUserAdminRepo()
	svc := NewUserService(repo, &mockActivityRecorder{}, nil, nil)

	err := svc.Delete(context.Background(), &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin}, "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

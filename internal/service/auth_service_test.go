package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ssn-coe/rcms-api/internal/models"
	"github.com/ssn-coe/rcms-api/internal/notify"
	appErrors "github.com/ssn-coe/rcms-api/pkg/errors"
	"github.com/ssn-coe/rcms-api/pkg/mail"
)

type mockAuthRepo struct {
	users   map[string]*models.User
	created []*models.User
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.users[strings.ToLower(email)]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = "new-user"
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	m.users[strings.ToLower(user.Email)] = user
	m.created = append(m.created, user)
	return nil
}

func (m *mockAuthRepo) UpdateProfile(ctx context.Context, user *models.User) error { return nil }

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	for _, u := range m.users {
		if u.ID == id {
			u.PasswordHash = passwordHash
		}
	}
	return nil
}

type mockActivityRecorder struct {
	entries []*models.ActivityLog
}

func (m *mockActivityRecorder) Create(ctx context.Context, entry *models.ActivityLog) error {
	m.entries = append(m.entries, entry)
	return nil
}

type mockNotificationSink struct {
	batches [][]models.Notification
}

func (m *mockNotificationSink) InsertBatch(ctx context.Context, notifications []models.Notification) error {
	m.batches = append(m.batches, notifications)
	return nil
}

type captureMailer struct {
	messages []mail.Message
}

func (m *captureMailer) Dispatch(msgs ...mail.Message) {
	m.messages = append(m.messages, msgs...)
}

type staticDirectory struct {
	users []models.User
}

func (d *staticDirectory) ActiveByRole(ctx context.Context, role models.Role, department string) ([]models.User, error) {
	var out []models.User
	for _, u := range d.users {
		if u.Role != role || !u.Active {
			continue
		}
		if department != "" && (u.Department == nil || *u.Department != department) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (d *staticDirectory) ActiveInDepartments(ctx context.Context, departments []string) ([]models.User, error) {
	var out []models.User
	for _, u := range d.users {
		if u.Active {
			out = append(out, u)
		}
	}
	return out, nil
}

func newAuthFixture(t *testing.T, users ...*models.User) (*AuthService, *mockAuthRepo, *mockActivityRecorder, *mockNotificationSink, *captureMailer, *OTPStore) {
	t.Helper()
	repo := &mockAuthRepo{users: make(map[string]*models.User)}
	var directory staticDirectory
	for _, u := range users {
		repo.users[strings.ToLower(u.Email)] = u
		directory.users = append(directory.users, *u)
	}
	activity := &mockActivityRecorder{}
	notifications := &mockNotificationSink{}
	mailer := &captureMailer{}
	otp := NewOTPStore(6, 10*time.Minute, nil)
	router := notify.NewRouter(&directory, "http://localhost:3000")
	svc := NewAuthService(repo, activity, notifications, router, otp, mailer, nil, nil, AuthConfig{
		TokenSecret: "secret",
		TokenExpiry: time.Hour,
		Issuer:      "rcms",
	})
	return svc, repo, activity, notifications, mailer, otp
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	user := &models.User{ID: "u1", Name: "Admin", Email: "admin@college.edu", PasswordHash: hashPassword(t, "password"), Role: models.RoleAdmin, Active: true, Verified: true}
	svc, _, activity, _, _, _ := newAuthFixture(t, user)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@college.edu", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "u1", res.User.ID)

	claims, err := svc.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	require.Len(t, activity.entries, 1)
	assert.Equal(t, models.ActivityActionLogin, activity.entries[0].Action)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	user := &models.User{ID: "u1", Email: "admin@college.edu", PasswordHash: hashPassword(t, "password"), Role: models.RoleAdmin, Active: true, Verified: true}
	svc, _, _, _, _, _ := newAuthFixture(t, user)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@college.edu", Password: "nope"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnverifiedBeforeInactive(t *testing.T) {
	user := &models.User{ID: "u1", Email: "demo@college.edu", PasswordHash: hashPassword(t, "password"), Role: models.RoleFaculty, Active: false, Verified: false}
	svc, _, _, _, _, _ := newAuthFixture(t, user)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "demo@college.edu", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnverifiedAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	user := &models.User{ID: "u1", Email: "off@college.edu", PasswordHash: hashPassword(t, "password"), Role: models.RoleFaculty, Active: false, Verified: true}
	svc, _, _, _, _, _ := newAuthFixture(t, user)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "off@college.edu", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceSignupRequiresVerifiedEmail(t *testing.T) {
	svc, repo, _, _, _, _ := newAuthFixture(t)

	_, err := svc.Signup(context.Background(), models.SignupRequest{
		Name: "New Faculty", Email: "new@college.edu", Password: "password", Role: models.RoleFaculty, Department: "CSE",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestAuthServiceSignupAfterOTPNotifiesAdmins(t *testing.T) {
	admin := &models.User{ID: "a1", Name: "Admin", Email: "admin@college.edu", Role: models.RoleAdmin, Active: true, Verified: true}
	svc, repo, activity, notifications, mailer, otp := newAuthFixture(t, admin)

	require.NoError(t, svc.SendOTP(context.Background(), models.SendOTPRequest{Email: "new@college.edu", Name: "New Faculty"}))
	require.Len(t, mailer.messages, 1)

	code, err := otp.Issue("new@college.edu")
	require.NoError(t, err)
	require.NoError(t, svc.VerifyOTP(context.Background(), models.VerifyOTPRequest{Email: "New@College.edu", OTP: code}))

	res, err := svc.Signup(context.Background(), models.SignupRequest{
		Name: "New Faculty", Email: "new@college.edu", Password: "password", Role: models.RoleFaculty, Department: "CSE",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	require.Len(t, repo.created, 1)
	assert.True(t, repo.created[0].Verified)
	assert.True(t, repo.created[0].Active)

	require.Len(t, notifications.batches, 1)
	require.Len(t, notifications.batches[0], 1)
	assert.Equal(t, "a1", notifications.batches[0][0].UserID)

	require.NotEmpty(t, activity.entries)
	assert.Equal(t, models.ActivityActionSignup, activity.entries[len(activity.entries)-1].Action)
}

func TestAuthServiceSignupVerificationSingleUse(t *testing.T) {
	svc, _, _, _, _, otp := newAuthFixture(t)

	code, err := otp.Issue("new@college.edu")
	require.NoError(t, err)
	require.NoError(t, otp.Verify("new@college.edu", code))

	_, err = svc.Signup(context.Background(), models.SignupRequest{
		Name: "One", Email: "new@college.edu", Password: "password", Role: models.RolePrincipal,
	})
	require.NoError(t, err)

	_, err = svc.Signup(context.Background(), models.SignupRequest{
		Name: "Two", Email: "other@college.edu", Password: "password", Role: models.RolePrincipal,
	})
	require.Error(t, err)
}

func TestAuthServiceSignupDepartmentRules(t *testing.T) {
	svc, _, _, _, _, otp := newAuthFixture(t)

	code, err := otp.Issue("hod@college.edu")
	require.NoError(t, err)
	require.NoError(t, otp.Verify("hod@college.edu", code))

	_, err = svc.Signup(context.Background(), models.SignupRequest{
		Name: "HoD", Email: "hod@college.edu", Password: "password", Role: models.RoleHOD,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceSendOTPRejectsExistingEmail(t *testing.T) {
	user := &models.User{ID: "u1", Email: "admin@college.edu", Role: models.RoleAdmin, Active: true, Verified: true}
	svc, _, _, _, _, _ := newAuthFixture(t, user)

	err := svc.SendOTP(context.Background(), models.SendOTPRequest{Email: "admin@college.edu"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

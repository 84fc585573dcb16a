package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssn-coe/rcms-api/internal/models"
	"github.com/ssn-coe/rcms-api/internal/notify"
	appErrors "github.com/ssn-coe/rcms-api/pkg/errors"
)

type mockSubmissionRepo struct {
	byID        map[string]*models.Submission
	byPair      map[string]*models.Submission
	created     *models.Submission
	resubmitted *models.Submission
	reviewed    *models.Submission
	listed      []models.Submission
	lastFilter  models.SubmissionFilter
	completes   bool
	reviewErr   error
}

func pairKey(circularID, userID string) string {
	return fmt.Sprintf("%s|%s", circularID, userID)
}

func (m *mockSubmissionRepo) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	if s, ok := m.byID[id]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionRepo) FindByCircularAndUser(ctx context.Context, circularID, userID string) (*models.Submission, error) {
	if s, ok := m.byPair[pairKey(circularID, userID)]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionRepo) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	m.lastFilter = filter
	return m.listed, nil
}

func (m *mockSubmissionRepo) CreateWithNotifications(ctx context.Context, submission *models.Submission, notifications []models.Notification) error {
	submission.ID = "sub-new"
	m.created = submission
	return nil
}

func (m *mockSubmissionRepo) ResubmitWithNotifications(ctx context.Context, submission *models.Submission, notifications []models.Notification) error {
	m.resubmitted = submission
	return nil
}

func (m *mockSubmissionRepo) ReviewWithNotifications(ctx context.Context, submission *models.Submission, notifications []models.Notification) (bool, error) {
	if m.reviewErr != nil {
		return false, m.reviewErr
	}
	m.reviewed = submission
	return m.completes, nil
}

type mockCircularReader struct {
	circulars map[string]*models.Circular
}

func (m *mockCircularReader) FindByID(ctx context.Context, id string) (*models.Circular, error) {
	if c, ok := m.circulars[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

type mockUserReader struct {
	users map[string]*models.User
}

func (m *mockUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func strPtr(s string) *string { return &s }

func claimsFor(u *models.User) *models.JWTClaims {
	return &models.JWTClaims{UserID: u.ID, Email: u.Email, Role: u.Role, Department: u.Department}
}

type submissionFixture struct {
	svc      *SubmissionService
	repo     *mockSubmissionRepo
	activity *mockActivityRecorder
	mailer   *captureMailer

	faculty *models.User
	hod     *models.User
	admin   *models.User
}

func newSubmissionFixture(t *testing.T, circular *models.Circular) *submissionFixture {
	t.Helper()
	faculty := &models.User{ID: "fac-1", Name: "Faculty One", Email: "fac1@college.edu", Role: models.RoleFaculty, Department: strPtr("CSE"), Active: true, Verified: true}
	hod := &models.User{ID: "hod-1", Name: "HoD CSE", Email: "hod1@college.edu", Role: models.RoleHOD, Department: strPtr("CSE"), Active: true, Verified: true}
	admin := &models.User{ID: "adm-1", Name: "Admin", Email: "admin@college.edu", Role: models.RoleAdmin, Active: true, Verified: true}

	directory := &staticDirectory{users: []models.User{*faculty, *hod, *admin}}
	router := notify.NewRouter(directory, "http://localhost:3000")

	repo := &mockSubmissionRepo{byID: make(map[string]*models.Submission), byPair: make(map[string]*models.Submission)}
	circulars := &mockCircularReader{circulars: map[string]*models.Circular{}}
	if circular != nil {
		circulars.circulars[circular.ID] = circular
	}
	users := &mockUserReader{users: map[string]*models.User{faculty.ID: faculty, hod.ID: hod, admin.ID: admin}}
	activity := &mockActivityRecorder{}
	mailer := &captureMailer{}

	svc := NewSubmissionService(repo, circulars, users, router, mailer, activity, nil, nil, nil)
	return &submissionFixture{svc: svc, repo: repo, activity: activity, mailer: mailer, faculty: faculty, hod: hod, admin: admin}
}

func activeCircular() *models.Circular {
	return &models.Circular{ID: "cir-1", Title: "NAAC Criteria Upload", Status: models.CircularStatusActive, TargetDepartments: "all"}
}

func TestSubmissionCreate(t *testing.T) {
	fx := newSubmissionFixture(t, activeCircular())

	sub, err := fx.svc.Create(context.Background(), claimsFor(fx.faculty), models.CreateSubmissionRequest{
		CircularID: "cir-1", Remarks: "uploaded all documents",
	})
	require.NoError(t, err)
	require.NotNil(t, fx.repo.created)
	assert.Equal(t, models.SubmissionStatusSubmitted, sub.Status)
	assert.Equal(t, "fac-1", sub.UserID)

	require.NotEmpty(t, fx.activity.entries)
	assert.Equal(t, models.ActivityActionSubmitProof, fx.activity.entries[0].Action)
}

func TestSubmissionCreateConflict(t *testing.T) {
	fx := newSubmissionFixture(t, activeCircular())
	fx.repo.byPair[pairKey("cir-1", "fac-1")] = &models.Submission{ID: "sub-1", Status: models.SubmissionStatusSubmitted}

	_, err := fx.svc.Create(context.Background(), claimsFor(fx.faculty), models.CreateSubmissionRequest{CircularID: "cir-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Nil(t, fx.repo.created)
}

func TestSubmissionCreateReusesRejectedRecord(t *testing.T) {
	fx := newSubmissionFixture(t, activeCircular())
	fx.repo.byPair[pairKey("cir-1", "fac-1")] = &models.Submission{ID: "sub-1", Status: models.SubmissionStatusRejected}

	sub, err := fx.svc.Create(context.Background(), claimsFor(fx.faculty), models.CreateSubmissionRequest{CircularID: "cir-1", Remarks: "fixed"})
	require.NoError(t, err)
	require.NotNil(t, fx.repo.resubmitted)
	assert.Equal(t, "sub-1", sub.ID)
	assert.Equal(t, models.SubmissionStatusSubmitted, sub.Status)
	assert.Nil(t, fx.repo.created)
}

func TestSubmissionCreateExpiredCircular(t *testing.T) {
	circular := activeCircular()
	circular.Status = models.CircularStatusExpired
	fx := newSubmissionFixture(t, circular)

	_, err := fx.svc.Create(context.Background(), claimsFor(fx.faculty), models.CreateSubmissionRequest{CircularID: "cir-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubmissionCreateOutsideTargetDepartments(t *testing.T) {
	circular := activeCircular()
	circular.TargetDepartments = "ECE,EEE"
	fx := newSubmissionFixture(t, circular)

	_, err := fx.svc.Create(context.Background(), claimsFor(fx.faculty), models.CreateSubmissionRequest{CircularID: "cir-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPermissionDenied.Code, appErrors.FromError(err).Code)
}

func TestSubmissionListScopes(t *testing.T) {
	fx := newSubmissionFixture(t, nil)

	_, err := fx.svc.List(context.Background(), claimsFor(fx.faculty), models.SubmissionFilter{})
	require.NoError(t, err)
	assert.Equal(t, "fac-1", fx.repo.lastFilter.UserID)

	_, err = fx.svc.List(context.Background(), claimsFor(fx.hod), models.SubmissionFilter{})
	require.NoError(t, err)
	assert.Equal(t, "CSE", fx.repo.lastFilter.UserDepartment)

	_, err = fx.svc.List(context.Background(), claimsFor(fx.admin), models.SubmissionFilter{})
	require.NoError(t, err)
	assert.Empty(t, fx.repo.lastFilter.UserID)
	assert.Empty(t, fx.repo.lastFilter.UserDepartment)
}

func TestSubmissionReviewApprove(t *testing.T) {
	fx := newSubmissionFixture(t, activeCircular())
	fx.repo.byID["sub-1"] = &models.Submission{ID: "sub-1", CircularID: "cir-1", UserID: "fac-1", Status: models.SubmissionStatusSubmitted, UserDepartment: strPtr("CSE")}
	fx.repo.completes = true

	sub, err := fx.svc.Review(context.Background(), claimsFor(fx.hod), "sub-1", models.ReviewRequest{Action: models.ReviewActionApprove, Remarks: "well documented"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusApproved, sub.Status)
	require.NotNil(t, sub.ReviewedBy)
	assert.Equal(t, "hod-1", *sub.ReviewedBy)
	require.NotNil(t, sub.AdminRemarks)
	assert.Equal(t, "well documented", *sub.AdminRemarks)
	require.NotNil(t, fx.repo.reviewed)

	require.NotEmpty(t, fx.activity.entries)
	assert.Equal(t, models.ActivityActionApproveSubmission, fx.activity.entries[0].Action)
	assert.Contains(t, fx.activity.entries[0].Details, "approved")
}

func TestSubmissionReviewRejectWithoutRemarks(t *testing.T) {
	fx := newSubmissionFixture(t, activeCircular())
	fx.repo.byID["sub-1"] = &models.Submission{ID: "sub-1", CircularID: "cir-1", UserID: "fac-1", Status: models.SubmissionStatusSubmitted, UserDepartment: strPtr("CSE")}

	sub, err := fx.svc.Review(context.Background(), claimsFor(fx.admin), "sub-1", models.ReviewRequest{Action: models.ReviewActionReject})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusRejected, sub.Status)
	assert.Nil(t, sub.AdminRemarks)
	assert.Equal(t, models.ActivityActionRejectSubmission, fx.activity.entries[0].Action)
}

func TestSubmissionReviewDeniedForFaculty(t *testing.T) {
	fx := newSubmissionFixture(t, activeCircular())

	_, err := fx.svc.Review(context.Background(), claimsFor(fx.faculty), "sub-1", models.ReviewRequest{Action: models.ReviewActionApprove})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPermissionDenied.Code, appErrors.FromError(err).Code)
}

func TestSubmissionReviewOwnSubmissionDenied(t *testing.T) {
	fx := newSubmissionFixture(t, activeCircular())
	fx.repo.byID["sub-1"] = &models.Submission{ID: "sub-1", CircularID: "cir-1", UserID: "hod-1", Status: models.SubmissionStatusSubmitted, UserDepartment: strPtr("CSE")}

	_, err := fx.svc.Review(context.Background(), claimsFor(fx.hod), "sub-1", models.ReviewRequest{Action: models.ReviewActionApprove})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPermissionDenied.Code, appErrors.FromError(err).Code)
}

func TestSubmissionReviewOutsideDepartmentDenied(t *testing.T) {
	fx := newSubmissionFixture(t, activeCircular())
	fx.repo.byID["sub-1"] = &models.Submission{ID: "sub-1", CircularID: "cir-1", UserID: "fac-2", Status: models.SubmissionStatusSubmitted, UserDepartment: strPtr("ECE")}

	_, err := fx.svc.Review(context.Background(), claimsFor(fx.hod), "sub-1", models.ReviewRequest{Action: models.ReviewActionApprove})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPermissionDenied.Code, appErrors.FromError(err).Code)
}

func TestSubmissionReviewAlreadyDecided(t *testing.T) {
	fx := newSubmissionFixture(t, activeCircular())
	fx.repo.byID["sub-1"] = &models.Submission{ID: "sub-1", CircularID: "cir-1", UserID: "fac-1", Status: models.SubmissionStatusApproved, UserDepartment: strPtr("CSE")}

	_, err := fx.svc.Review(context.Background(), claimsFor(fx.admin), "sub-1", models.ReviewRequest{Action: models.ReviewActionApprove})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubmissionReviewLostRace(t *testing.T) {
	fx := newSubmissionFixture(t, activeCircular())
	fx.repo.byID["sub-1"] = &models.Submission{ID: "sub-1", CircularID: "cir-1", UserID: "fac-1", Status: models.SubmissionStatusSubmitted, UserDepartment: strPtr("CSE")}
	fx.repo.reviewErr = sql.ErrNoRows

	_, err := fx.svc.Review(context.Background(), claimsFor(fx.admin), "sub-1", models.ReviewRequest{Action: models.ReviewActionApprove})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

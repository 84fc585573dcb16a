package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssn-coe/rcms-api/internal/models"
	"github.com/ssn-coe/rcms-api/internal/notify"
	appErrors "github.com/ssn-coe/rcms-api/pkg/errors"
)

type mockCircularRepo struct {
	byID       map[string]*models.Circular
	created    *models.Circular
	fanout     []models.Notification
	updated    *models.Circular
	deleted    []string
	listed     []models.Circular
	lastFilter models.CircularFilter
}

func (m *mockCircularRepo) CreateWithNotifications(ctx context.Context, circular *models.Circular, notifications []models.Notification) error {
	circular.ID = "cir-new"
	m.created = circular
	m.fanout = notifications
	return nil
}

func (m *mockCircularRepo) FindByID(ctx context.Context, id string) (*models.Circular, error) {
	if c, ok := m.byID[id]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCircularRepo) List(ctx context.Context, filter models.CircularFilter) ([]models.Circular, error) {
	m.lastFilter = filter
	return m.listed, nil
}

func (m *mockCircularRepo) Update(ctx context.Context, circular *models.Circular) error {
	m.updated = circular
	return nil
}

func (m *mockCircularRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockCategoryRollup struct {
	rows []models.CategorySummary
}

func (m *mockCategoryRollup) CategoryRollup(ctx context.Context, targetDepartment string) ([]models.CategorySummary, error) {
	return m.rows, nil
}

type circularFixture struct {
	svc       *CircularService
	repo      *mockCircularRepo
	subs      *mockSubmissionRepo
	rollup    *mockCategoryRollup
	activity  *mockActivityRecorder
	mailer    *captureMailer
	admin     *models.JWTClaims
	hod       *models.JWTClaims
	faculty   *models.JWTClaims
	principal *models.JWTClaims
}

func newCircularFixture(t *testing.T) *circularFixture {
	t.Helper()
	hodUser := models.User{ID: "hod-1", Name: "HoD CSE", Email: "hod1@college.edu", Role: models.RoleHOD, Department: strPtr("CSE"), Active: true, Verified: true}
	facultyUser := models.User{ID: "fac-1", Name: "Faculty One", Email: "fac1@college.edu", Role: models.RoleFaculty, Department: strPtr("CSE"), Active: true, Verified: true}
	directory := &staticDirectory{users: []models.User{hodUser, facultyUser}}
	router := notify.NewRouter(directory, "http://localhost:3000")

	repo := &mockCircularRepo{byID: make(map[string]*models.Circular)}
	subs := &mockSubmissionRepo{byID: make(map[string]*models.Submission), byPair: make(map[string]*models.Submission)}
	rollup := &mockCategoryRollup{}
	activity := &mockActivityRecorder{}
	mailer := &captureMailer{}

	svc := NewCircularService(repo, subs, rollup, router, mailer, activity, nil, nil, nil)
	return &circularFixture{
		svc:       svc,
		repo:      repo,
		subs:      subs,
		rollup:    rollup,
		activity:  activity,
		mailer:    mailer,
		admin:     &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin},
		hod:       &models.JWTClaims{UserID: "hod-1", Role: models.RoleHOD, Department: strPtr("CSE")},
		faculty:   &models.JWTClaims{UserID: "fac-1", Role: models.RoleFaculty, Department: strPtr("CSE")},
		principal: &models.JWTClaims{UserID: "pri-1", Role: models.RolePrincipal},
	}
}

func TestCircularCreateDefaults(t *testing.T) {
	fx := newCircularFixture(t)

	circular, err := fx.svc.Create(context.Background(), fx.admin, models.CreateCircularRequest{
		Title:       "NAAC accreditation audit",
		Description: "Prepare criteria documents. Submit by 15 March 2031.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Audit & Accreditation", circular.Category)
	assert.Equal(t, "Other", circular.RegulationType)
	assert.Equal(t, models.CircularPriorityMedium, circular.Priority)
	assert.Equal(t, models.CircularStatusActive, circular.Status)
	assert.Equal(t, models.TargetAll, circular.TargetDepartments)
	require.NotNil(t, circular.Deadline)
	assert.Equal(t, 2031, circular.Deadline.Year())
	assert.NotEmpty(t, circular.AcademicYear)

	require.NotNil(t, fx.repo.created)
	assert.Len(t, fx.repo.fanout, 2)
	assert.Len(t, fx.mailer.messages, 2)
}

func TestCircularCreateTargetsJoined(t *testing.T) {
	fx := newCircularFixture(t)

	circular, err := fx.svc.Create(context.Background(), fx.principal, models.CreateCircularRequest{
		Title:             "Lab safety inspection",
		TargetDepartments: []string{"CSE", " ECE "},
	})
	require.NoError(t, err)
	assert.Equal(t, "CSE,ECE", circular.TargetDepartments)
}

func TestCircularCreateUnknownDepartment(t *testing.T) {
	fx := newCircularFixture(t)

	_, err := fx.svc.Create(context.Background(), fx.admin, models.CreateCircularRequest{
		Title:             "Lab safety inspection",
		TargetDepartments: []string{"PHYSICS"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCircularCreateDeniedForDepartmentRoles(t *testing.T) {
	fx := newCircularFixture(t)

	for _, actor := range []*models.JWTClaims{fx.hod, fx.faculty} {
		_, err := fx.svc.Create(context.Background(), actor, models.CreateCircularRequest{Title: "Notice"})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrPermissionDenied.Code, appErrors.FromError(err).Code)
	}
}

func TestCircularListScopesDepartmentViewers(t *testing.T) {
	fx := newCircularFixture(t)
	fx.repo.listed = []models.Circular{{ID: "cir-1", Title: "Notice", TargetDepartments: "CSE"}}
	fx.subs.listed = []models.Submission{{ID: "sub-1", CircularID: "cir-1", UserID: "fac-1", Status: models.SubmissionStatusSubmitted}}

	out, err := fx.svc.List(context.Background(), fx.faculty, models.CircularFilter{})
	require.NoError(t, err)
	assert.Equal(t, "CSE", fx.repo.lastFilter.TargetDepartment)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].MySubmission)
	assert.Equal(t, "sub-1", out[0].MySubmission.ID)

	_, err = fx.svc.List(context.Background(), fx.admin, models.CircularFilter{})
	require.NoError(t, err)
	assert.Empty(t, fx.repo.lastFilter.TargetDepartment)
}

func TestCircularGetOutsideTargetDenied(t *testing.T) {
	fx := newCircularFixture(t)
	fx.repo.byID["cir-1"] = &models.Circular{ID: "cir-1", Title: "Notice", TargetDepartments: "ECE"}

	_, err := fx.svc.Get(context.Background(), fx.faculty, "cir-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPermissionDenied.Code, appErrors.FromError(err).Code)
}

func TestCircularGetScopesReviewSubmissions(t *testing.T) {
	fx := newCircularFixture(t)
	fx.repo.byID["cir-1"] = &models.Circular{ID: "cir-1", Title: "Notice", TargetDepartments: "all"}
	fx.subs.listed = []models.Submission{{ID: "sub-1", CircularID: "cir-1"}}

	detail, err := fx.svc.Get(context.Background(), fx.hod, "cir-1")
	require.NoError(t, err)
	assert.Equal(t, "cir-1", fx.subs.lastFilter.CircularID)
	assert.Equal(t, "CSE", fx.subs.lastFilter.UserDepartment)
	assert.Len(t, detail.Submissions, 1)
}

func TestCircularUpdateValidatesSets(t *testing.T) {
	fx := newCircularFixture(t)
	fx.repo.byID["cir-1"] = &models.Circular{ID: "cir-1", Title: "Notice", Category: "Other", TargetDepartments: "all"}

	bad := "Nonexistent Category"
	_, err := fx.svc.Update(context.Background(), fx.admin, "cir-1", models.UpdateCircularRequest{Category: &bad})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	title := "Revised Notice"
	updated, err := fx.svc.Update(context.Background(), fx.admin, "cir-1", models.UpdateCircularRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Revised Notice", updated.Title)
	require.NotNil(t, fx.repo.updated)
}

func TestCircularCategorySummaryZeroFills(t *testing.T) {
	fx := newCircularFixture(t)
	fx.rollup.rows = []models.CategorySummary{{Category: "Examination", Total: 4, TotalSubmissions: 10, ApprovedSubmissions: 5}}

	out, err := fx.svc.CategorySummary(context.Background(), fx.admin)
	require.NoError(t, err)
	require.Len(t, out, len(models.Categories))

	var exam models.CategorySummary
	for _, row := range out {
		if row.Category == "Examination" {
			exam = row
		} else {
			assert.Zero(t, row.Total)
		}
	}
	assert.Equal(t, 4, exam.Total)
	assert.InDelta(t, 50.0, exam.ComplianceRate, 1e-9)
}

func TestComplianceRateIsPercentage(t *testing.T) {
	assert.InDelta(t, 50.0, complianceRate(1, 2), 1e-9)
	assert.InDelta(t, 33.3, complianceRate(1, 3), 1e-9)
	assert.InDelta(t, 100.0, complianceRate(7, 7), 1e-9)
	assert.Zero(t, complianceRate(0, 0))
}

func TestCurrentAcademicYearRollsOverInJune(t *testing.T) {
	may := time.Date(2026, time.May, 20, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-2026", currentAcademicYear(may))

	june := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-2027", currentAcademicYear(june))
}

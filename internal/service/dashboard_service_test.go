package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssn-coe/rcms-api/internal/models"
	"github.com/ssn-coe/rcms-api/internal/repository"
	appErrors "github.com/ssn-coe/rcms-api/pkg/errors"
)

type mockStatsRepo struct {
	counts      repository.OverviewCounts
	lastScope   repository.StatsScope
	departments []models.DepartmentStats
	submitter   models.SubmitterStats
	regulations []models.RegulationReadiness
}

func (m *mockStatsRepo) Overview(ctx context.Context, scope repository.StatsScope) (*repository.OverviewCounts, error) {
	m.lastScope = scope
	counts := m.counts
	return &counts, nil
}

func (m *mockStatsRepo) DepartmentRollup(ctx context.Context) ([]models.DepartmentStats, error) {
	return m.departments, nil
}

func (m *mockStatsRepo) SubmitterRollup(ctx context.Context, userID string) (*models.SubmitterStats, error) {
	stats := m.submitter
	return &stats, nil
}

func (m *mockStatsRepo) RegulationRollup(ctx context.Context) ([]models.RegulationReadiness, error) {
	return m.regulations, nil
}

type mockDeadlineReader struct {
	listed     []models.Circular
	upcoming   []models.Circular
	overdue    []models.Circular
	lastFilter models.CircularFilter
}

func (m *mockDeadlineReader) List(ctx context.Context, filter models.CircularFilter) ([]models.Circular, error) {
	m.lastFilter = filter
	return m.listed, nil
}

func (m *mockDeadlineReader) UpcomingDeadlines(ctx context.Context, now time.Time, window time.Duration, targetDepartment string, limit int) ([]models.Circular, error) {
	return m.upcoming, nil
}

func (m *mockDeadlineReader) Overdue(ctx context.Context, now time.Time, targetDepartment string) ([]models.Circular, error) {
	return m.overdue, nil
}

type mockActivityLister struct {
	logs       []models.ActivityLog
	lastFilter models.ActivityFilter
}

func (m *mockActivityLister) List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, int, error) {
	m.lastFilter = filter
	return m.logs, len(m.logs), nil
}

type mapCache struct {
	entries map[string]interface{}
	sets    []string
}

func (m *mapCache) Get(ctx context.Context, key string, dest interface{}) error {
	if cached, ok := m.entries[key]; ok {
		if stats, ok := cached.(*models.DashboardStats); ok {
			*dest.(*models.DashboardStats) = *stats
			return nil
		}
	}
	return appErrors.ErrCacheMiss
}

func (m *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string]interface{})
	}
	m.entries[key] = value
	m.sets = append(m.sets, key)
	return nil
}

type dashboardFixture struct {
	svc      *DashboardService
	stats    *mockStatsRepo
	circs    *mockDeadlineReader
	subs     *mockSubmissionRepo
	activity *mockActivityLister
	cache    *mapCache
}

func newDashboardFixture(t *testing.T) *dashboardFixture {
	t.Helper()
	stats := &mockStatsRepo{}
	circs := &mockDeadlineReader{}
	subs := &mockSubmissionRepo{}
	activity := &mockActivityLister{}
	cache := &mapCache{}
	svc := NewDashboardService(stats, circs, subs, activity, cache, time.Minute, nil)
	return &dashboardFixture{svc: svc, stats: stats, circs: circs, subs: subs, activity: activity, cache: cache}
}

func TestDashboardAdminMergesAllDepartments(t *testing.T) {
	fx := newDashboardFixture(t)
	fx.stats.counts = repository.OverviewCounts{TotalSubmissions: 10, ApprovedSubmissions: 4}
	fx.stats.departments = []models.DepartmentStats{{Department: "CSE", UserCount: 5, TotalSubmissions: 8, ApprovedSubmissions: 4}}
	fx.subs.listed = []models.Submission{{ID: "sub-1", Status: models.SubmissionStatusSubmitted}}

	stats, err := fx.svc.Stats(context.Background(), &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin})
	require.NoError(t, err)

	assert.Equal(t, repository.StatsScope{}, fx.stats.lastScope)
	assert.InDelta(t, 40.0, stats.ComplianceRate, 1e-9)
	require.Len(t, stats.DepartmentStats, len(models.Departments))
	assert.Equal(t, "CSE", stats.DepartmentStats[0].Department)
	assert.InDelta(t, 50.0, stats.DepartmentStats[0].ComplianceRate, 1e-9)
	assert.Zero(t, stats.DepartmentStats[1].UserCount)
	require.Len(t, stats.PendingReviews, 1)

	assert.Contains(t, fx.cache.sets, "dashboard:admin")
}

func TestDashboardHodScopedToDepartment(t *testing.T) {
	fx := newDashboardFixture(t)
	fx.stats.departments = []models.DepartmentStats{{Department: "CSE", UserCount: 5, TotalSubmissions: 4, ApprovedSubmissions: 2}}

	stats, err := fx.svc.Stats(context.Background(), &models.JWTClaims{UserID: "hod-1", Role: models.RoleHOD, Department: strPtr("CSE")})
	require.NoError(t, err)

	assert.Equal(t, "CSE", fx.stats.lastScope.Department)
	assert.Equal(t, "CSE", fx.stats.lastScope.TargetDepartment)
	require.NotNil(t, stats.Department)
	assert.Equal(t, 5, stats.Department.UserCount)
	assert.Equal(t, "CSE", fx.subs.lastFilter.UserDepartment)
	assert.Equal(t, "CSE", fx.activity.lastFilter.Department)
	assert.Nil(t, stats.DepartmentStats)
}

func TestDashboardFacultyPendingCirculars(t *testing.T) {
	fx := newDashboardFixture(t)
	fx.stats.submitter = models.SubmitterStats{Total: 3, Approved: 1, Pending: 1, Rejected: 1}
	fx.circs.listed = []models.Circular{
		{ID: "cir-1", Title: "Answered"},
		{ID: "cir-2", Title: "Unanswered"},
		{ID: "cir-3", Title: "Rejected attempt"},
	}
	fx.subs.listed = []models.Submission{
		{ID: "sub-1", CircularID: "cir-1", Status: models.SubmissionStatusSubmitted},
		{ID: "sub-3", CircularID: "cir-3", Status: models.SubmissionStatusRejected},
	}

	stats, err := fx.svc.Stats(context.Background(), &models.JWTClaims{UserID: "fac-1", Role: models.RoleFaculty, Department: strPtr("CSE")})
	require.NoError(t, err)

	assert.Equal(t, "fac-1", fx.stats.lastScope.UserID)
	require.NotNil(t, stats.MySubmissions)
	assert.Equal(t, 3, stats.MySubmissions.Total)

	require.Len(t, stats.PendingCirculars, 2)
	assert.Equal(t, "cir-2", stats.PendingCirculars[0].ID)
	assert.Equal(t, "cir-3", stats.PendingCirculars[1].ID)
	assert.Equal(t, "fac-1", fx.activity.lastFilter.UserID)
}

func TestDashboardServedFromCache(t *testing.T) {
	fx := newDashboardFixture(t)
	cached := &models.DashboardStats{TotalCirculars: 42}
	fx.cache.entries = map[string]interface{}{"dashboard:admin": cached}

	stats, err := fx.svc.Stats(context.Background(), &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, 42, stats.TotalCirculars)
	assert.Empty(t, fx.cache.sets)
}

func TestAccreditationDeniedForDepartmentRoles(t *testing.T) {
	fx := newDashboardFixture(t)

	_, err := fx.svc.Accreditation(context.Background(), &models.JWTClaims{UserID: "hod-1", Role: models.RoleHOD, Department: strPtr("CSE")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPermissionDenied.Code, appErrors.FromError(err).Code)
}

func TestAccreditationReadiness(t *testing.T) {
	fx := newDashboardFixture(t)
	fx.stats.regulations = []models.RegulationReadiness{
		{RegulationType: "NAAC", TotalCirculars: 4, Completed: 2},
		{RegulationType: "AICTE", TotalCirculars: 1, Completed: 1},
	}

	report, err := fx.svc.Accreditation(context.Background(), &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, report.Regulations, len(models.RegulationTypes))

	assert.Equal(t, "NAAC", report.Regulations[0].RegulationType)
	assert.InDelta(t, 50.0, report.Regulations[0].ReadinessScore, 1e-9)
	assert.Zero(t, report.Regulations[2].TotalCirculars)
	assert.InDelta(t, 60.0, report.OverallReadiness, 1e-9)
}

func TestActivityScopes(t *testing.T) {
	fx := newDashboardFixture(t)

	_, page, err := fx.svc.Activity(context.Background(), &models.JWTClaims{UserID: "fac-1", Role: models.RoleFaculty, Department: strPtr("CSE")}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "fac-1", fx.activity.lastFilter.UserID)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)

	_, _, err = fx.svc.Activity(context.Background(), &models.JWTClaims{UserID: "hod-1", Role: models.RoleHOD, Department: strPtr("CSE")}, 2, 50)
	require.NoError(t, err)
	assert.Equal(t, "CSE", fx.activity.lastFilter.Department)
}

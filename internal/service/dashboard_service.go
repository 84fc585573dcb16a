package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ssn-coe/rcms-api/internal/models"
	"github.com/ssn-coe/rcms-api/internal/policy"
	"github.com/ssn-coe/rcms-api/internal/repository"
	appErrors "github.com/ssn-coe/rcms-api/pkg/errors"
)

const (
	deadlineWindow      = 14 * 24 * time.Hour
	deadlineLimit       = 5
	recentActivityCount = 10
)

type statsRepository interface {
	Overview(ctx context.Context, scope repository.StatsScope) (*repository.OverviewCounts, error)
	DepartmentRollup(ctx context.Context) ([]models.DepartmentStats, error)
	SubmitterRollup(ctx context.Context, userID string) (*models.SubmitterStats, error)
	RegulationRollup(ctx context.Context) ([]models.RegulationReadiness, error)
}

type deadlineReader interface {
	List(ctx context.Context, filter models.CircularFilter) ([]models.Circular, error)
	UpcomingDeadlines(ctx context.Context, now time.Time, window time.Duration, targetDepartment string, limit int) ([]models.Circular, error)
	Overdue(ctx context.Context, now time.Time, targetDepartment string) ([]models.Circular, error)
}

type submissionLister interface {
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
}

type activityLister interface {
	List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, int, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// DashboardService assembles the per-role dashboard, the accreditation
// readiness view, and the activity trail. Dashboard payloads are cached
// in Redis and invalidated by the write paths.
type DashboardService struct {
	stats       statsRepository
	circulars   deadlineReader
	submissions submissionLister
	activity    activityLister
	cache       statsCache
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewDashboardService constructs a DashboardService instance.
func NewDashboardService(stats statsRepository, circulars deadlineReader, submissions submissionLister, activity activityLister, cache statsCache, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		stats:       stats,
		circulars:   circulars,
		submissions: submissions,
		activity:    activity,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

func dashboardCacheKey(viewer *models.JWTClaims) string {
	dept := ""
	if viewer.Department != nil {
		dept = *viewer.Department
	}
	switch viewer.Role {
	case models.RoleFaculty:
		return fmt.Sprintf("dashboard:%s:%s:%s", viewer.Role, dept, viewer.UserID)
	case models.RoleHOD:
		return fmt.Sprintf("dashboard:%s:%s", viewer.Role, dept)
	default:
		return fmt.Sprintf("dashboard:%s", viewer.Role)
	}
}

// Stats returns the dashboard for the viewer, scoped to what their
// role may see.
func (s *DashboardService) Stats(ctx context.Context, viewer *models.JWTClaims) (*models.DashboardStats, error) {
	key := dashboardCacheKey(viewer)
	if s.cache != nil {
		var cached models.DashboardStats
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	dept := ""
	if viewer.Department != nil {
		dept = *viewer.Department
	}

	scope := repository.StatsScope{}
	switch viewer.Role {
	case models.RoleHOD:
		scope = repository.StatsScope{TargetDepartment: dept, Department: dept}
	case models.RoleFaculty:
		scope = repository.StatsScope{TargetDepartment: dept, UserID: viewer.UserID}
	}

	counts, err := s.stats.Overview(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dashboard counts")
	}

	stats := &models.DashboardStats{
		TotalCirculars:      counts.TotalCirculars,
		ActiveCirculars:     counts.ActiveCirculars,
		TotalSubmissions:    counts.TotalSubmissions,
		PendingSubmissions:  counts.PendingSubmissions,
		ApprovedSubmissions: counts.ApprovedSubmissions,
		RejectedSubmissions: counts.RejectedSubmissions,
		ComplianceRate:      complianceRate(counts.ApprovedSubmissions, counts.TotalSubmissions),
		TotalUsers:          counts.TotalUsers,
	}

	now := nowUTC()
	targetDept := ""
	if policy.VisibleScope(viewer.Role) != policy.ScopeAll {
		targetDept = dept
	}

	upcoming, err := s.circulars.UpcomingDeadlines(ctx, now, deadlineWindow, targetDept, deadlineLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load upcoming deadlines")
	}
	stats.UpcomingDeadlines = upcoming

	overdue, err := s.circulars.Overdue(ctx, now, targetDept)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load overdue circulars")
	}
	stats.OverdueCirculars = overdue
	stats.OverdueCount = len(overdue)

	activityFilter := models.ActivityFilter{PageSize: recentActivityCount}
	switch viewer.Role {
	case models.RoleHOD:
		activityFilter.Department = dept
	case models.RoleFaculty:
		activityFilter.UserID = viewer.UserID
	}
	recent, _, err := s.activity.List(ctx, activityFilter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent activity")
	}
	stats.RecentActivity = recent

	switch viewer.Role {
	case models.RoleAdmin, models.RolePrincipal:
		if err := s.fillInstitutionBlock(ctx, stats); err != nil {
			return nil, err
		}
	case models.RoleHOD:
		if err := s.fillDepartmentBlock(ctx, stats, dept); err != nil {
			return nil, err
		}
	case models.RoleFaculty:
		if err := s.fillSubmitterBlock(ctx, stats, viewer.UserID, dept); err != nil {
			return nil, err
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return stats, nil
}

func (s *DashboardService) fillInstitutionBlock(ctx context.Context, stats *models.DashboardStats) error {
	rollup, err := s.stats.DepartmentRollup(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department rollup")
	}
	stats.DepartmentStats = mergeDepartmentStats(rollup)

	submitted := models.SubmissionStatusSubmitted
	pending, err := s.submissions.List(ctx, models.SubmissionFilter{Status: &submitted})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending reviews")
	}
	stats.PendingReviews = pending
	return nil
}

func (s *DashboardService) fillDepartmentBlock(ctx context.Context, stats *models.DashboardStats, dept string) error {
	rollup, err := s.stats.DepartmentRollup(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department rollup")
	}
	own := models.DepartmentStats{Department: dept}
	for _, row := range rollup {
		if row.Department == dept {
			own = row
			break
		}
	}
	own.ComplianceRate = complianceRate(own.ApprovedSubmissions, own.TotalSubmissions)
	stats.Department = &own

	submitted := models.SubmissionStatusSubmitted
	pending, err := s.submissions.List(ctx, models.SubmissionFilter{Status: &submitted, UserDepartment: dept})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending reviews")
	}
	stats.PendingReviews = pending
	return nil
}

func (s *DashboardService) fillSubmitterBlock(ctx context.Context, stats *models.DashboardStats, userID, dept string) error {
	mine, err := s.stats.SubmitterRollup(ctx, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission counts")
	}
	stats.MySubmissions = mine

	active := models.CircularStatusActive
	targeted, err := s.circulars.List(ctx, models.CircularFilter{Status: &active, TargetDepartment: dept})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load circulars")
	}

	submitted, err := s.submissions.List(ctx, models.SubmissionFilter{UserID: userID})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
	}
	answered := make(map[string]models.SubmissionStatus, len(submitted))
	for _, sub := range submitted {
		answered[sub.CircularID] = sub.Status
	}

	var pending []models.Circular
	for _, c := range targeted {
		status, ok := answered[c.ID]
		if !ok || status == models.SubmissionStatusRejected {
			pending = append(pending, c)
		}
	}
	stats.PendingCirculars = pending
	return nil
}

// Accreditation returns per-regulation-type readiness. Restricted to
// institution-wide viewers.
func (s *DashboardService) Accreditation(ctx context.Context, viewer *models.JWTClaims) (*models.AccreditationReport, error) {
	if !policy.CanManageUsers(viewer.Role) {
		return nil, appErrors.PermissionDeniedf("%s accounts cannot view accreditation readiness", viewer.Role)
	}

	rollup, err := s.stats.RegulationRollup(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load regulation rollup")
	}
	byType := make(map[string]models.RegulationReadiness, len(rollup))
	for _, row := range rollup {
		byType[row.RegulationType] = row
	}

	report := &models.AccreditationReport{Regulations: make([]models.RegulationReadiness, 0, len(models.RegulationTypes))}
	var totalCirculars, totalCompleted int
	for _, regType := range models.RegulationTypes {
		row := models.RegulationReadiness{RegulationType: regType}
		if found, ok := byType[regType]; ok {
			row = found
		}
		row.ReadinessScore = complianceRate(row.Completed, row.TotalCirculars)
		totalCirculars += row.TotalCirculars
		totalCompleted += row.Completed
		report.Regulations = append(report.Regulations, row)
	}
	report.OverallReadiness = complianceRate(totalCompleted, totalCirculars)
	return report, nil
}

// Activity returns the activity trail visible to the viewer.
func (s *DashboardService) Activity(ctx context.Context, viewer *models.JWTClaims, page, pageSize int) ([]models.ActivityLog, *models.Pagination, error) {
	filter := models.ActivityFilter{Page: page, PageSize: pageSize}
	switch policy.VisibleScope(viewer.Role) {
	case policy.ScopeOwn:
		filter.UserID = viewer.UserID
	case policy.ScopeDepartment:
		if viewer.Department != nil {
			filter.Department = *viewer.Department
		}
	}

	logs, total, err := s.activity.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	return logs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// mergeDepartmentStats overlays rollup rows on the fixed department
// list so reports keep a stable shape.
func mergeDepartmentStats(rollup []models.DepartmentStats) []models.DepartmentStats {
	byDept := make(map[string]models.DepartmentStats, len(rollup))
	for _, row := range rollup {
		byDept[row.Department] = row
	}
	merged := make([]models.DepartmentStats, 0, len(models.Departments))
	for _, dept := range models.Departments {
		row := models.DepartmentStats{Department: dept}
		if found, ok := byDept[dept]; ok {
			row = found
		}
		row.ComplianceRate = complianceRate(row.ApprovedSubmissions, row.TotalSubmissions)
		merged = append(merged, row)
	}
	return merged
}

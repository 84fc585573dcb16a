package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ssn-coe/rcms-api/internal/heuristics"
	"github.com/ssn-coe/rcms-api/internal/models"
	"github.com/ssn-coe/rcms-api/internal/notify"
	"github.com/ssn-coe/rcms-api/internal/policy"
	appErrors "github.com/ssn-coe/rcms-api/pkg/errors"
)

type circularRepository interface {
	CreateWithNotifications(ctx context.Context, circular *models.Circular, notifications []models.Notification) error
	FindByID(ctx context.Context, id string) (*models.Circular, error)
	List(ctx context.Context, filter models.CircularFilter) ([]models.Circular, error)
	Update(ctx context.Context, circular *models.Circular) error
	Delete(ctx context.Context, id string) error
}

type submissionReader interface {
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
	FindByCircularAndUser(ctx context.Context, circularID, userID string) (*models.Submission, error)
}

type categoryRollupReader interface {
	CategoryRollup(ctx context.Context, targetDepartment string) ([]models.CategorySummary, error)
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CircularService provides circular lifecycle use cases.
type CircularService struct {
	repo        circularRepository
	submissions submissionReader
	stats       categoryRollupReader
	router      *notify.Router
	mailer      mailDispatcher
	activity    activityRecorder
	cache       cacheInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCircularService constructs a CircularService instance.
func NewCircularService(repo circularRepository, submissions submissionReader, stats categoryRollupReader, router *notify.Router, mailer mailDispatcher, activity activityRecorder, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *CircularService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CircularService{
		repo:        repo,
		submissions: submissions,
		stats:       stats,
		router:      router,
		mailer:      mailer,
		activity:    activity,
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

// Create publishes a circular, fanning notifications out to the target
// departments. Omitted category and deadline are derived from the text.
func (s *CircularService) Create(ctx context.Context, actor *models.JWTClaims, req models.CreateCircularRequest) (*models.Circular, error) {
	if !policy.CanPublishCirculars(actor.Role) {
		return nil, appErrors.PermissionDeniedf("%s accounts cannot publish circulars", actor.Role)
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid circular payload")
	}

	text := req.Title + " " + req.Description

	category := req.Category
	if category == "" {
		category = heuristics.Categorize(text)
	} else if !inSet(category, models.Categories) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown category")
	}

	regulationType := req.RegulationType
	if regulationType == "" {
		regulationType = "Other"
	} else if !inSet(regulationType, models.RegulationTypes) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown regulation type")
	}

	deadline := req.Deadline
	if deadline == nil {
		if extracted, ok := heuristics.ExtractDeadline(text); ok {
			deadline = &extracted
		}
	}

	priority := models.CircularPriorityMedium
	if req.Priority != "" {
		priority = models.CircularPriority(req.Priority)
		switch priority {
		case models.CircularPriorityHigh, models.CircularPriorityMedium, models.CircularPriorityLow:
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown priority")
		}
	}

	targets, err := normalizeTargets(req.TargetDepartments)
	if err != nil {
		return nil, err
	}

	academicYear := req.AcademicYear
	if academicYear == "" {
		academicYear = currentAcademicYear(time.Now())
	}

	circular := &models.Circular{
		Title:             req.Title,
		Description:       req.Description,
		Category:          category,
		RegulationType:    regulationType,
		Deadline:          deadline,
		AcademicYear:      academicYear,
		Priority:          priority,
		Status:            models.CircularStatusActive,
		TargetDepartments: targets,
		FilePath:          req.FilePath,
		FileName:          req.FileName,
		UploadedBy:        actor.UserID,
	}

	publisher := &models.User{ID: actor.UserID, Role: actor.Role}
	fanout, err := s.router.CircularPublished(ctx, circular, publisher)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute circular audience")
	}

	if err := s.repo.CreateWithNotifications(ctx, circular, fanout.Notifications); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish circular")
	}

	s.mailer.Dispatch(fanout.Emails...)
	s.record(ctx, actor.UserID, models.ActivityActionCreateCircular, &circular.ID, fmt.Sprintf("published %q for %s", circular.Title, circular.TargetDepartments))
	s.invalidateCaches(ctx)

	return circular, nil
}

// List returns circulars under the viewer's scope with the viewer's
// own submission attached to each.
func (s *CircularService) List(ctx context.Context, viewer *models.JWTClaims, filter models.CircularFilter) ([]models.CircularWithSubmission, error) {
	if viewer.Role.RequiresDepartment() && viewer.Department != nil {
		filter.TargetDepartment = *viewer.Department
	}

	circulars, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list circulars")
	}

	mine, err := s.submissions.List(ctx, models.SubmissionFilter{UserID: viewer.UserID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load own submissions")
	}
	byCircular := make(map[string]*models.Submission, len(mine))
	for i := range mine {
		byCircular[mine[i].CircularID] = &mine[i]
	}

	out := make([]models.CircularWithSubmission, 0, len(circulars))
	for _, c := range circulars {
		out = append(out, models.CircularWithSubmission{Circular: c, MySubmission: byCircular[c.ID]})
	}
	return out, nil
}

// Get returns one circular. Reviewers additionally get the submission
// list under their scope.
func (s *CircularService) Get(ctx context.Context, viewer *models.JWTClaims, id string) (*models.CircularDetail, error) {
	circular, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "circular not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load circular")
	}

	if viewer.Role.RequiresDepartment() && viewer.Department != nil && !circular.Targets(*viewer.Department) {
		return nil, appErrors.PermissionDeniedf("circular does not address your department")
	}

	detail := &models.CircularDetail{Circular: *circular}

	if policy.CanReviewSubmissions(viewer.Role) {
		subFilter := models.SubmissionFilter{CircularID: id}
		if policy.VisibleScope(viewer.Role) == policy.ScopeDepartment && viewer.Department != nil {
			subFilter.UserDepartment = *viewer.Department
		}
		submissions, err := s.submissions.List(ctx, subFilter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
		}
		detail.Submissions = submissions
	}

	if own, err := s.submissions.FindByCircularAndUser(ctx, id, viewer.UserID); err == nil {
		detail.MySubmission = own
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load own submission")
	}

	return detail, nil
}

// Update mutates a circular's describing fields.
func (s *CircularService) Update(ctx context.Context, actor *models.JWTClaims, id string, req models.UpdateCircularRequest) (*models.Circular, error) {
	if !policy.CanPublishCirculars(actor.Role) {
		return nil, appErrors.PermissionDeniedf("%s accounts cannot edit circulars", actor.Role)
	}

	circular, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "circular not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load circular")
	}

	if req.Title != nil {
		circular.Title = *req.Title
	}
	if req.Description != nil {
		circular.Description = *req.Description
	}
	if req.Category != nil {
		if !inSet(*req.Category, models.Categories) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown category")
		}
		circular.Category = *req.Category
	}
	if req.RegulationType != nil {
		if !inSet(*req.RegulationType, models.RegulationTypes) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown regulation type")
		}
		circular.RegulationType = *req.RegulationType
	}
	if req.Deadline != nil {
		circular.Deadline = req.Deadline
	}
	if req.AcademicYear != nil {
		circular.AcademicYear = *req.AcademicYear
	}
	if req.Priority != nil {
		priority := models.CircularPriority(*req.Priority)
		switch priority {
		case models.CircularPriorityHigh, models.CircularPriorityMedium, models.CircularPriorityLow:
			circular.Priority = priority
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown priority")
		}
	}
	if req.TargetDepartments != nil {
		targets, err := normalizeTargets(req.TargetDepartments)
		if err != nil {
			return nil, err
		}
		circular.TargetDepartments = targets
	}

	if err := s.repo.Update(ctx, circular); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update circular")
	}

	s.record(ctx, actor.UserID, models.ActivityActionUpdateCircular, &id, fmt.Sprintf("updated %q", circular.Title))
	s.invalidateCaches(ctx)
	return circular, nil
}

// Delete removes a circular along with its submissions and
// notifications.
func (s *CircularService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	if !policy.CanPublishCirculars(actor.Role) {
		return appErrors.PermissionDeniedf("%s accounts cannot delete circulars", actor.Role)
	}

	circular, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "circular not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load circular")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete circular")
	}

	s.record(ctx, actor.UserID, models.ActivityActionDeleteCircular, &id, fmt.Sprintf("deleted %q", circular.Title))
	s.invalidateCaches(ctx)
	return nil
}

// CategorySummary returns the per-category rollup under the viewer's
// scope. Every fixed category appears even with zero circulars.
func (s *CircularService) CategorySummary(ctx context.Context, viewer *models.JWTClaims) ([]models.CategorySummary, error) {
	targetDepartment := ""
	if viewer.Role.RequiresDepartment() && viewer.Department != nil {
		targetDepartment = *viewer.Department
	}

	rows, err := s.stats.CategoryRollup(ctx, targetDepartment)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute category summary")
	}

	byCategory := make(map[string]models.CategorySummary, len(rows))
	for _, row := range rows {
		row.ComplianceRate = complianceRate(row.ApprovedSubmissions, row.TotalSubmissions)
		byCategory[row.Category] = row
	}

	out := make([]models.CategorySummary, 0, len(models.Categories))
	for _, category := range models.Categories {
		if row, ok := byCategory[category]; ok {
			out = append(out, row)
		} else {
			out = append(out, models.CategorySummary{Category: category})
		}
	}
	return out, nil
}

func (s *CircularService) record(ctx context.Context, userID, action string, entityID *string, details string) {
	if err := s.activity.Create(ctx, &models.ActivityLog{
		UserID:     userID,
		Action:     action,
		EntityType: "circular",
		EntityID:   entityID,
		Details:    details,
	}); err != nil {
		s.logger.Warn("failed to record activity", zap.String("action", action), zap.Error(err))
	}
}

func (s *CircularService) invalidateCaches(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

// normalizeTargets validates the department set and joins it into the
// stored CSV form. An empty set addresses every department.
func normalizeTargets(departments []string) (string, error) {
	if len(departments) == 0 {
		return models.TargetAll, nil
	}
	cleaned := make([]string, 0, len(departments))
	for _, dept := range departments {
		trimmed := strings.TrimSpace(dept)
		if trimmed == "" {
			continue
		}
		if strings.EqualFold(trimmed, models.TargetAll) {
			return models.TargetAll, nil
		}
		if !models.ValidDepartment(trimmed) {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown department %q", trimmed))
		}
		cleaned = append(cleaned, trimmed)
	}
	if len(cleaned) == 0 {
		return models.TargetAll, nil
	}
	return strings.Join(cleaned, ","), nil
}

// currentAcademicYear formats the session year, rolling over in June.
func currentAcademicYear(now time.Time) string {
	year := now.Year()
	if now.Month() < time.June {
		year--
	}
	return fmt.Sprintf("%d-%d", year, year+1)
}

func inSet(value string, set []string) bool {
	for _, s := range set {
		if s == value {
			return true
		}
	}
	return false
}

// complianceRate is approved over total as a percentage rounded to
// one decimal; zero when nothing was submitted.
func complianceRate(approved, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(approved)/float64(total)*1000) / 10
}

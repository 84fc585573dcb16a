package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ssn-coe/rcms-api/internal/models"
	"github.com/ssn-coe/rcms-api/internal/notify"
	"github.com/ssn-coe/rcms-api/internal/policy"
	"github.com/ssn-coe/rcms-api/internal/repository"
	appErrors "github.com/ssn-coe/rcms-api/pkg/errors"
)

type submissionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	FindByCircularAndUser(ctx context.Context, circularID, userID string) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
	CreateWithNotifications(ctx context.Context, submission *models.Submission, notifications []models.Notification) error
	ResubmitWithNotifications(ctx context.Context, submission *models.Submission, notifications []models.Notification) error
	ReviewWithNotifications(ctx context.Context, submission *models.Submission, notifications []models.Notification) (bool, error)
}

type circularReader interface {
	FindByID(ctx context.Context, id string) (*models.Circular, error)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// SubmissionService drives the proof-of-compliance review cycle.
type SubmissionService struct {
	repo      submissionRepository
	circulars circularReader
	users     userReader
	router    *notify.Router
	mailer    mailDispatcher
	activity  activityRecorder
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(repo submissionRepository, circulars circularReader, users userReader, router *notify.Router, mailer mailDispatcher, activity activityRecorder, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SubmissionService{
		repo:      repo,
		circulars: circulars,
		users:     users,
		router:    router,
		mailer:    mailer,
		activity:  activity,
		cache:     cache,
		validator: validate,
		logger:    logger,
	}
}

// Create records a proof submission against an active circular. A
// rejected earlier attempt is reused in place; any other existing
// attempt is a conflict.
func (s *SubmissionService) Create(ctx context.Context, actor *models.JWTClaims, req models.CreateSubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	circular, err := s.circulars.FindByID(ctx, req.CircularID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "circular not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load circular")
	}
	if circular.Status != models.CircularStatusActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("circular is %s and no longer accepts submissions", circular.Status))
	}
	if actor.Role.RequiresDepartment() && actor.Department != nil && !circular.Targets(*actor.Department) {
		return nil, appErrors.PermissionDeniedf("circular does not address your department")
	}

	submitter, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submitter")
	}

	fanout, err := s.router.SubmissionCreated(ctx, submitter, circular)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute submission audience")
	}

	submission := &models.Submission{
		CircularID: req.CircularID,
		UserID:     actor.UserID,
		FilePath:   req.FilePath,
		FileName:   req.FileName,
		Remarks:    req.Remarks,
		Status:     models.SubmissionStatusSubmitted,
	}

	existing, err := s.repo.FindByCircularAndUser(ctx, req.CircularID, actor.UserID)
	switch {
	case err == nil && existing.Status == models.SubmissionStatusRejected:
		submission.ID = existing.ID
		if err := s.repo.ResubmitWithNotifications(ctx, submission, fanout.Notifications); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "you already have a submission for this circular")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resubmit")
		}
	case err == nil:
		return nil, appErrors.Clone(appErrors.ErrConflict, "you already have a submission for this circular")
	case errors.Is(err, sql.ErrNoRows):
		if err := s.repo.CreateWithNotifications(ctx, submission, fanout.Notifications); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "you already have a submission for this circular")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
		}
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing submission")
	}

	s.mailer.Dispatch(fanout.Emails...)
	s.record(ctx, actor.UserID, models.ActivityActionSubmitProof, &submission.ID, fmt.Sprintf("submitted proof for %q", circular.Title))
	s.invalidateCaches(ctx)

	return submission, nil
}

// List returns submissions under the viewer's visibility scope.
func (s *SubmissionService) List(ctx context.Context, viewer *models.JWTClaims, filter models.SubmissionFilter) ([]models.Submission, error) {
	switch policy.VisibleScope(viewer.Role) {
	case policy.ScopeOwn:
		filter.UserID = viewer.UserID
	case policy.ScopeDepartment:
		if viewer.Department != nil {
			filter.UserDepartment = *viewer.Department
		}
	}

	submissions, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

// Mine returns the viewer's own submissions.
func (s *SubmissionService) Mine(ctx context.Context, viewer *models.JWTClaims) ([]models.Submission, error) {
	submissions, err := s.repo.List(ctx, models.SubmissionFilter{UserID: viewer.UserID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

// Get returns one submission if the viewer's scope covers it.
func (s *SubmissionService) Get(ctx context.Context, viewer *models.JWTClaims, id string) (*models.Submission, error) {
	submission, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	switch policy.VisibleScope(viewer.Role) {
	case policy.ScopeOwn:
		if submission.UserID != viewer.UserID {
			return nil, appErrors.PermissionDeniedf("you may only view your own submissions")
		}
	case policy.ScopeDepartment:
		if viewer.Department == nil || submission.UserDepartment == nil || *submission.UserDepartment != *viewer.Department {
			if submission.UserID != viewer.UserID {
				return nil, appErrors.PermissionDeniedf("submission is outside your department")
			}
		}
	}
	return submission, nil
}

// Review decides a submitted proof. Approval re-derives the circular's
// completion; the decision, its notification, and any status flip
// commit together.
func (s *SubmissionService) Review(ctx context.Context, actor *models.JWTClaims, id string, req models.ReviewRequest) (*models.Submission, error) {
	if !policy.CanReviewSubmissions(actor.Role) {
		return nil, appErrors.PermissionDeniedf("%s accounts cannot review submissions", actor.Role)
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	submission, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	if submission.UserID == actor.UserID {
		return nil, appErrors.PermissionDeniedf("you cannot review your own submission")
	}
	if policy.VisibleScope(actor.Role) == policy.ScopeDepartment {
		if actor.Department == nil || submission.UserDepartment == nil || *submission.UserDepartment != *actor.Department {
			return nil, appErrors.PermissionDeniedf("submission is outside your department")
		}
	}
	if submission.Status != models.SubmissionStatusSubmitted {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("submission is %s and cannot be reviewed", submission.Status))
	}

	submitter, err := s.users.FindByID(ctx, submission.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submitter")
	}
	circular, err := s.circulars.FindByID(ctx, submission.CircularID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load circular")
	}

	decided := models.SubmissionStatusApproved
	action := models.ActivityActionApproveSubmission
	outcome := "approved"
	if req.Action == models.ReviewActionReject {
		decided = models.SubmissionStatusRejected
		action = models.ActivityActionRejectSubmission
		outcome = "rejected"
	}

	now := nowUTC()
	submission.Status = decided
	submission.ReviewedAt = &now
	submission.ReviewedBy = &actor.UserID
	if req.Remarks != "" {
		remarks := req.Remarks
		submission.AdminRemarks = &remarks
	} else {
		submission.AdminRemarks = nil
	}

	fanout := s.router.SubmissionReviewed(submitter, circular, req.Action, req.Remarks)

	completed, err := s.repo.ReviewWithNotifications(ctx, submission, fanout.Notifications)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "submission was already reviewed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record review")
	}
	if completed {
		s.logger.Info("circular completed", zap.String("circular_id", submission.CircularID))
	}

	s.mailer.Dispatch(fanout.Emails...)
	s.record(ctx, actor.UserID, action, &submission.ID, fmt.Sprintf("%s %s's submission for %q", outcome, submitter.Name, circular.Title))
	s.invalidateCaches(ctx)

	return submission, nil
}

func (s *SubmissionService) record(ctx context.Context, userID, action string, entityID *string, details string) {
	if err := s.activity.Create(ctx, &models.ActivityLog{
		UserID:     userID,
		Action:     action,
		EntityType: "submission",
		EntityID:   entityID,
		Details:    details,
	}); err != nil {
		s.logger.Warn("failed to record activity", zap.String("action", action), zap.Error(err))
	}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func (s *SubmissionService) invalidateCaches(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

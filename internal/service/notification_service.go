package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/ssn-coe/rcms-api/internal/models"
	appErrors "github.com/ssn-coe/rcms-api/pkg/errors"
)

type notificationRepository interface {
	List(ctx context.Context, userID string, unreadOnly bool, page, pageSize int) ([]models.Notification, int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, id, userID string) error
}

// NotificationService provides the viewer's notification inbox. Every
// operation is scoped to the caller; there is no cross-user access.
type NotificationService struct {
	repo   notificationRepository
	logger *zap.Logger
}

// NewNotificationService constructs a NotificationService instance.
func NewNotificationService(repo notificationRepository, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, logger: logger}
}

// List returns the caller's notifications with pagination.
func (s *NotificationService) List(ctx context.Context, viewer *models.JWTClaims, unreadOnly bool, page, pageSize int) ([]models.Notification, *models.Pagination, error) {
	notifications, total, err := s.repo.List(ctx, viewer.UserID, unreadOnly, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return notifications, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// UnreadCount returns the caller's unread notification count.
func (s *NotificationService) UnreadCount(ctx context.Context, viewer *models.JWTClaims) (int, error) {
	count, err := s.repo.UnreadCount(ctx, viewer.UserID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}

// MarkRead marks one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, viewer *models.JWTClaims, id string) error {
	if err := s.repo.MarkRead(ctx, id, viewer.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// MarkAllRead marks the caller's entire inbox as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, viewer *models.JWTClaims) error {
	if err := s.repo.MarkAllRead(ctx, viewer.UserID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return nil
}

// Delete removes one of the caller's notifications.
func (s *NotificationService) Delete(ctx context.Context, viewer *models.JWTClaims, id string) error {
	if err := s.repo.Delete(ctx, id, viewer.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete notification")
	}
	return nil
}

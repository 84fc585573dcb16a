package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ssn-coe/rcms-api/internal/models"
)

// ErrDuplicate maps a PostgreSQL unique violation into a sentinel the
// service layer translates to a Conflict response.
var ErrDuplicate = errors.New("duplicate record")

// isUniqueViolation reports whether err is a PostgreSQL unique
// constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

const notificationInsert = `INSERT INTO notifications (id, user_id, title, message, type, read, circular_id, created_at)
VALUES (:id, :user_id, :title, :message, :type, :read, :circular_id, :created_at)`

// insertNotifications persists fan-out rows on the given executor so a
// state transition and its notifications share one transaction.
func insertNotifications(ctx context.Context, ext sqlx.ExtContext, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range notifications {
		if notifications[i].ID == "" {
			notifications[i].ID = uuid.NewString()
		}
		if notifications[i].CreatedAt.IsZero() {
			notifications[i].CreatedAt = now
		}
	}
	if _, err := sqlx.NamedExecContext(ctx, ext, notificationInsert, notifications); err != nil {
		return fmt.Errorf("insert notifications: %w", err)
	}
	return nil
}

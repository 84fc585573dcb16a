package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssn-coe/rcms-api/internal/models"
)

func TestNotificationListUnread(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "title", "message", "type", "read", "circular_id", "created_at"}).
		AddRow("n1", "u1", "New Circular: Safety Audit", "msg", string(models.NotificationTypeCircular), false, "c1", now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, title, message, type, read, circular_id, created_at FROM notifications WHERE user_id = $1 AND read = FALSE ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("u1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	notifications, total, err := repo.List(context.Background(), "u1", true, 1, 20)
	require.NoError(t, err)
	assert.Len(t, notifications, 1)
	assert.Equal(t, 1, total)
	assert.False(t, notifications[0].Read)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationMarkReadOwnerGate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2")).
		WithArgs("n1", "intruder").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkRead(context.Background(), "n1", "intruder")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationUnreadCount(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.UnreadCount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationInsertBatchEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	err := repo.InsertBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

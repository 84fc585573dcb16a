package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssn-coe/rcms-api/internal/models"
)

func TestCircularCreateWithNotifications(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCircularRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO circulars").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	circular := &models.Circular{Title: "Safety Audit", Category: "Audit & Accreditation", RegulationType: "NAAC",
		Priority: models.CircularPriorityHigh, Status: models.CircularStatusActive, TargetDepartments: "all", UploadedBy: "admin1"}
	notifications := []models.Notification{
		{UserID: "u1", Title: "New Circular: Safety Audit", Type: models.NotificationTypeCircular},
		{UserID: "u2", Title: "New Circular: Safety Audit", Type: models.NotificationTypeCircular},
	}
	err := repo.CreateWithNotifications(context.Background(), circular, notifications)
	require.NoError(t, err)
	assert.NotEmpty(t, circular.ID)
	for _, n := range notifications {
		require.NotNil(t, n.CircularID)
		assert.Equal(t, circular.ID, *n.CircularID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCircularExpireOverdue(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCircularRepository(db)

	mock.ExpectExec("UPDATE circulars SET status = 'expired'").WillReturnResult(sqlmock.NewResult(0, 3))

	flipped, err := repo.ExpireOverdue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), flipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCircularDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCircularRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM submissions WHERE circular_id").WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM notifications WHERE circular_id").WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec("DELETE FROM circulars WHERE id").WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), "c1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCircularDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCircularRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM submissions WHERE circular_id").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM notifications WHERE circular_id").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM circulars WHERE id").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

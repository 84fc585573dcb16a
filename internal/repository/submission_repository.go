package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ssn-coe/rcms-api/internal/models"
)

const submissionColumns = `s.id, s.circular_id, s.user_id, s.file_path, s.file_name, s.remarks,
s.status, s.admin_remarks, s.submitted_at, s.reviewed_at, s.reviewed_by,
c.title AS circular_title, c.category AS circular_category,
u.name AS user_name, u.role AS user_role, u.department AS user_department`

const submissionJoins = `FROM submissions s
JOIN circulars c ON c.id = s.circular_id
JOIN users u ON u.id = s.user_id`

// SubmissionRepository provides database access for submissions. The
// write methods that move the review state machine also persist their
// notification fan-out and the circular status flip in one transaction.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository creates a new instance of SubmissionRepository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// FindByID returns a submission with circular and submitter details.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` ` + submissionJoins + ` WHERE s.id = $1 LIMIT 1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find submission by id: %w", err)
	}
	return &submission, nil
}

// FindByCircularAndUser returns the pair's single submission record,
// whatever its status. A rejected record is reused on resubmission so
// at most one row exists per pair.
func (r *SubmissionRepository) FindByCircularAndUser(ctx context.Context, circularID, userID string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` ` + submissionJoins + ` WHERE s.circular_id = $1 AND s.user_id = $2 ORDER BY s.submitted_at DESC LIMIT 1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, circularID, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find submission by circular and user: %w", err)
	}
	return &submission, nil
}

// List returns submissions matching the filter, newest first.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` ` + submissionJoins + ` WHERE 1=1`
	var args []interface{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND s.status = $%d", len(args))
	}
	if filter.CircularID != "" {
		args = append(args, filter.CircularID)
		query += fmt.Sprintf(" AND s.circular_id = $%d", len(args))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		query += fmt.Sprintf(" AND u.department = $%d", len(args))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += fmt.Sprintf(" AND s.user_id = $%d", len(args))
	}
	if filter.UserDepartment != "" {
		args = append(args, filter.UserDepartment)
		query += fmt.Sprintf(" AND u.department = $%d", len(args))
	}

	query += " ORDER BY s.submitted_at DESC"

	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, args...); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// ListForCircular returns every submission attached to a circular.
func (r *SubmissionRepository) ListForCircular(ctx context.Context, circularID string) ([]models.Submission, error) {
	return r.List(ctx, models.SubmissionFilter{CircularID: circularID})
}

// CreateWithNotifications inserts a new submission and its fan-out rows
// in one transaction. The partial unique index on (circular_id,
// user_id) over non-rejected rows turns a concurrent duplicate into
// ErrDuplicate.
func (r *SubmissionRepository) CreateWithNotifications(ctx context.Context, submission *models.Submission, notifications []models.Notification) (err error) {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin submission create: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO submissions (id, circular_id, user_id, file_path, file_name, remarks, status, submitted_at)
VALUES (:id, :circular_id, :user_id, :file_path, :file_name, :remarks, :status, :submitted_at)`
	if _, err = tx.NamedExecContext(ctx, query, submission); err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicate
			return err
		}
		return fmt.Errorf("create submission: %w", err)
	}
	if err = insertNotifications(ctx, tx, notifications); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit submission create: %w", err)
	}
	return nil
}

// ResubmitWithNotifications reuses a rejected record for a fresh
// attempt: new proof and remarks, review fields cleared, plus the
// fan-out rows, in one transaction. Returns ErrDuplicate when the
// record is no longer rejected.
func (r *SubmissionRepository) ResubmitWithNotifications(ctx context.Context, submission *models.Submission, notifications []models.Notification) (err error) {
	submission.Status = models.SubmissionStatusSubmitted
	submission.AdminRemarks = nil
	submission.ReviewedAt = nil
	submission.ReviewedBy = nil
	submission.SubmittedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin resubmission: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE submissions SET file_path = :file_path, file_name = :file_name, remarks = :remarks,
status = :status, admin_remarks = NULL, reviewed_at = NULL, reviewed_by = NULL, submitted_at = :submitted_at
WHERE id = :id AND status = 'rejected'`
	res, err := tx.NamedExecContext(ctx, query, submission)
	if err != nil {
		return fmt.Errorf("resubmit submission: %w", err)
	}
	if affected, raErr := res.RowsAffected(); raErr == nil && affected == 0 {
		err = ErrDuplicate
		return err
	}
	if err = insertNotifications(ctx, tx, notifications); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit resubmission: %w", err)
	}
	return nil
}

// ReviewWithNotifications records the review decision, persists the
// submitter's notification, and re-derives the circular's completion
// by a full rescan, all in one transaction. Returns whether the rescan
// flipped the circular to completed.
func (r *SubmissionRepository) ReviewWithNotifications(ctx context.Context, submission *models.Submission, notifications []models.Notification) (completed bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin review: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE submissions SET status = :status, admin_remarks = :admin_remarks,
reviewed_at = :reviewed_at, reviewed_by = :reviewed_by
WHERE id = :id AND status = 'submitted'`
	res, err := tx.NamedExecContext(ctx, query, submission)
	if err != nil {
		return false, fmt.Errorf("review submission: %w", err)
	}
	if affected, raErr := res.RowsAffected(); raErr == nil && affected == 0 {
		err = sql.ErrNoRows
		return false, err
	}

	if submission.Status == models.SubmissionStatusApproved {
		var tally struct {
			Total    int `db:"total"`
			Approved int `db:"approved"`
		}
		// Every row counts: an outstanding rejection holds the circular
		// open until its resubmission is approved.
		const rescan = `SELECT COUNT(*) AS total,
COUNT(*) FILTER (WHERE status = 'approved') AS approved
FROM submissions WHERE circular_id = $1`
		if err = tx.GetContext(ctx, &tally, rescan, submission.CircularID); err != nil {
			return false, fmt.Errorf("rescan circular submissions: %w", err)
		}
		// An empty submission set never completes a circular.
		if tally.Total > 0 && tally.Total == tally.Approved {
			if _, err = tx.ExecContext(ctx, `UPDATE circulars SET status = 'completed', updated_at = $2 WHERE id = $1 AND status <> 'completed'`, submission.CircularID, time.Now().UTC()); err != nil {
				return false, fmt.Errorf("complete circular: %w", err)
			}
			completed = true
		}
	}

	if err = insertNotifications(ctx, tx, notifications); err != nil {
		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit review: %w", err)
	}
	return completed, nil
}

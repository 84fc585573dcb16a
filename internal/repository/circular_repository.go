package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ssn-coe/rcms-api/internal/models"
)

const circularColumns = `c.id, c.title, c.description, c.category, c.regulation_type, c.deadline,
c.academic_year, c.priority, c.status, c.target_departments, c.file_path, c.file_name,
c.uploaded_by, c.created_at, c.updated_at,
COALESCE(u.name, '') AS uploader_name,
(SELECT COUNT(*) FROM submissions s WHERE s.circular_id = c.id AND s.status <> 'rejected') AS submission_count,
(SELECT COUNT(*) FROM submissions s WHERE s.circular_id = c.id AND s.status = 'approved') AS approved_count`

// CircularRepository provides database access for circulars.
type CircularRepository struct {
	db *sqlx.DB
}

// NewCircularRepository creates a new instance of CircularRepository.
func NewCircularRepository(db *sqlx.DB) *CircularRepository {
	return &CircularRepository{db: db}
}

// CreateWithNotifications inserts the circular and its fan-out rows in
// one transaction.
func (r *CircularRepository) CreateWithNotifications(ctx context.Context, circular *models.Circular, notifications []models.Notification) (err error) {
	if circular.ID == "" {
		circular.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if circular.CreatedAt.IsZero() {
		circular.CreatedAt = now
	}
	circular.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin circular create: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO circulars (id, title, description, category, regulation_type, deadline, academic_year, priority, status, target_departments, file_path, file_name, uploaded_by, created_at, updated_at)
VALUES (:id, :title, :description, :category, :regulation_type, :deadline, :academic_year, :priority, :status, :target_departments, :file_path, :file_name, :uploaded_by, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, circular); err != nil {
		return fmt.Errorf("create circular: %w", err)
	}
	for i := range notifications {
		notifications[i].CircularID = &circular.ID
	}
	if err = insertNotifications(ctx, tx, notifications); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit circular create: %w", err)
	}
	return nil
}

// FindByID returns a circular with uploader name and submission counts.
func (r *CircularRepository) FindByID(ctx context.Context, id string) (*models.Circular, error) {
	query := `SELECT ` + circularColumns + ` FROM circulars c LEFT JOIN users u ON u.id = c.uploaded_by WHERE c.id = $1 LIMIT 1`
	var circular models.Circular
	if err := r.db.GetContext(ctx, &circular, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find circular by id: %w", err)
	}
	return &circular, nil
}

// List returns circulars matching the filter, newest first.
func (r *CircularRepository) List(ctx context.Context, filter models.CircularFilter) ([]models.Circular, error) {
	query := `SELECT ` + circularColumns + ` FROM circulars c LEFT JOIN users u ON u.id = c.uploaded_by WHERE 1=1`
	var args []interface{}

	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND c.category = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND c.status = $%d", len(args))
	}
	if filter.RegulationType != "" {
		args = append(args, filter.RegulationType)
		query += fmt.Sprintf(" AND c.regulation_type = $%d", len(args))
	}
	if filter.AcademicYear != "" {
		args = append(args, filter.AcademicYear)
		query += fmt.Sprintf(" AND c.academic_year = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		query += fmt.Sprintf(" AND (LOWER(c.title) LIKE $%d OR LOWER(c.description) LIKE $%d)", len(args), len(args))
	}
	if filter.TargetDepartment != "" {
		args = append(args, filter.TargetDepartment)
		query += fmt.Sprintf(" AND (LOWER(c.target_departments) = 'all' OR ',' || REPLACE(c.target_departments, ' ', '') || ',' LIKE '%%,' || REPLACE($%d, ' ', '') || ',%%')", len(args))
	}

	query += " ORDER BY c.created_at DESC"

	var circulars []models.Circular
	if err := r.db.SelectContext(ctx, &circulars, query, args...); err != nil {
		return nil, fmt.Errorf("list circulars: %w", err)
	}
	return circulars, nil
}

// Update updates the mutable fields of a circular.
func (r *CircularRepository) Update(ctx context.Context, circular *models.Circular) error {
	circular.UpdatedAt = time.Now().UTC()
	const query = `UPDATE circulars SET title = :title, description = :description, category = :category,
regulation_type = :regulation_type, deadline = :deadline, academic_year = :academic_year,
priority = :priority, status = :status, target_departments = :target_departments, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, circular)
	if err != nil {
		return fmt.Errorf("update circular: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a circular together with its submissions and the
// notifications that reference it.
func (r *CircularRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin circular delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM submissions WHERE circular_id = $1`, id); err != nil {
		return fmt.Errorf("delete circular submissions: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM notifications WHERE circular_id = $1`, id); err != nil {
		return fmt.Errorf("delete circular notifications: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM circulars WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete circular: %w", err)
	}
	if affected, raErr := res.RowsAffected(); raErr == nil && affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit circular delete: %w", err)
	}
	return nil
}

// ExpireOverdue flips active circulars whose deadline has passed to
// expired. Returns the number of circulars flipped.
func (r *CircularRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE circulars SET status = 'expired', updated_at = $1 WHERE status = 'active' AND deadline IS NOT NULL AND deadline < $1`
	res, err := r.db.ExecContext(ctx, query, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("expire overdue circulars: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire overdue circulars: %w", err)
	}
	return affected, nil
}

// UpcomingDeadlines returns active circulars due within the window,
// soonest first, respecting the viewer's department targeting.
func (r *CircularRepository) UpcomingDeadlines(ctx context.Context, now time.Time, window time.Duration, targetDepartment string, limit int) ([]models.Circular, error) {
	query := `SELECT ` + circularColumns + ` FROM circulars c LEFT JOIN users u ON u.id = c.uploaded_by
WHERE c.status = 'active' AND c.deadline IS NOT NULL AND c.deadline >= $1 AND c.deadline <= $2`
	args := []interface{}{now.UTC(), now.UTC().Add(window)}
	if targetDepartment != "" {
		args = append(args, targetDepartment)
		query += fmt.Sprintf(" AND (LOWER(c.target_departments) = 'all' OR ',' || REPLACE(c.target_departments, ' ', '') || ',' LIKE '%%,' || REPLACE($%d, ' ', '') || ',%%')", len(args))
	}
	query += fmt.Sprintf(" ORDER BY c.deadline ASC LIMIT %d", limit)

	var circulars []models.Circular
	if err := r.db.SelectContext(ctx, &circulars, query, args...); err != nil {
		return nil, fmt.Errorf("list upcoming deadlines: %w", err)
	}
	return circulars, nil
}

// Overdue returns circulars past their deadline that never completed,
// including ones already swept to expired.
func (r *CircularRepository) Overdue(ctx context.Context, now time.Time, targetDepartment string) ([]models.Circular, error) {
	query := `SELECT ` + circularColumns + ` FROM circulars c LEFT JOIN users u ON u.id = c.uploaded_by
WHERE (c.status = 'expired' OR (c.status = 'active' AND c.deadline IS NOT NULL AND c.deadline < $1))`
	args := []interface{}{now.UTC()}
	if targetDepartment != "" {
		args = append(args, targetDepartment)
		query += fmt.Sprintf(" AND (LOWER(c.target_departments) = 'all' OR ',' || REPLACE(c.target_departments, ' ', '') || ',' LIKE '%%,' || REPLACE($%d, ' ', '') || ',%%')", len(args))
	}
	query += " ORDER BY c.deadline ASC"

	var circulars []models.Circular
	if err := r.db.SelectContext(ctx, &circulars, query, args...); err != nil {
		return nil, fmt.Errorf("list overdue circulars: %w", err)
	}
	return circulars, nil
}

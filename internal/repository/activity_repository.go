package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ssn-coe/rcms-api/internal/models"
)

// ActivityRepository provides database access for the audit trail.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository creates a new instance of ActivityRepository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create appends an activity entry.
func (r *ActivityRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO activity_logs (id, user_id, action, entity_type, entity_id, details, created_at)
VALUES (:id, :user_id, :action, :entity_type, :entity_id, :details, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create activity log: %w", err)
	}
	return nil
}

// List returns activity entries with actor details and total count,
// newest first.
func (r *ActivityRepository) List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, int, error) {
	baseQuery := `FROM activity_logs a JOIN users u ON u.id = a.user_id WHERE 1=1`
	var args []interface{}

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		baseQuery += fmt.Sprintf(" AND a.user_id = $%d", len(args))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		baseQuery += fmt.Sprintf(" AND u.department = $%d", len(args))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT a.id, a.user_id, a.action, a.entity_type, a.entity_id, a.details, a.created_at,
u.name AS user_name, u.role AS user_role %s ORDER BY a.created_at DESC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)

	var entries []models.ActivityLog
	if err := r.db.SelectContext(ctx, &entries, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list activity logs: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count activity logs: %w", err)
	}
	return entries, total, nil
}

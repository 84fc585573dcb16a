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

const userColumns = `id, name, email, password_hash, role, department, active, verified, created_at, updated_at`

// UserRepository provides database access for accounts and serves as
// the user directory for notification fan-out.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// List returns users based on filters with total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	baseQuery := `FROM users WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Department != nil {
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)+1))
		args = append(args, *filter.Department)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", userColumns, baseQuery, pageSize, offset)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}

// Create inserts a new user record.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, name, email, password_hash, role, department, active, verified, created_at, updated_at)
VALUES (:id, :name, :email, :password_hash, :role, :department, :active, :verified, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateProfile updates the mutable profile fields.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET name = :name, department = :department, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, time.Now().UTC()); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// SetActive flips the account's active flag.
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE users SET active = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetVerified marks an account as verified, allowing login.
func (r *UserRepository) SetVerified(ctx context.Context, id string) error {
	const query = `UPDATE users SET verified = TRUE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("set user verified: %w", err)
	}
	return nil
}

// DeleteWithCleanup removes the account and every record tied to it in
// one transaction. Reviews the user performed stay on the submissions
// with the reviewer reference cleared.
func (r *UserRepository) DeleteWithCleanup(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin user delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	steps := []struct {
		name  string
		query string
	}{
		{"clear reviewer references", `UPDATE submissions SET reviewed_by = NULL WHERE reviewed_by = $1`},
		{"delete notifications", `DELETE FROM notifications WHERE user_id = $1`},
		{"delete chat messages", `DELETE FROM chat_messages WHERE sender_id = $1 OR receiver_id = $1`},
		{"delete submissions", `DELETE FROM submissions WHERE user_id = $1`},
		{"delete activity logs", `DELETE FROM activity_logs WHERE user_id = $1`},
	}
	for _, step := range steps {
		if _, err = tx.ExecContext(ctx, step.query, id); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if affected, raErr := res.RowsAffected(); raErr == nil && affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit user delete: %w", err)
	}
	return nil
}

// ActiveByRole lists active users with the given role; a non-empty
// department narrows the result to that department.
func (r *UserRepository) ActiveByRole(ctx context.Context, role models.Role, department string) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE active = TRUE AND role = $1`
	args := []interface{}{role}
	if department != "" {
		query += ` AND department = $2`
		args = append(args, department)
	}
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list active users by role: %w", err)
	}
	return users, nil
}

// ActiveInDepartments lists active users whose department is in the
// given set; a nil set means every active user.
func (r *UserRepository) ActiveInDepartments(ctx context.Context, departments []string) ([]models.User, error) {
	if departments == nil {
		var users []models.User
		const query = `SELECT ` + userColumns + ` FROM users WHERE active = TRUE`
		if err := r.db.SelectContext(ctx, &users, query); err != nil {
			return nil, fmt.Errorf("list active users: %w", err)
		}
		return users, nil
	}

	query, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE active = TRUE AND department IN (?)`, departments)
	if err != nil {
		return nil, fmt.Errorf("build department query: %w", err)
	}
	query = r.db.Rebind(query)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list active users by department: %w", err)
	}
	return users, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ssn-coe/rcms-api/internal/models"
)

// StatsScope narrows aggregate queries to what the viewer may see.
// Zero values mean unscoped.
type StatsScope struct {
	// TargetDepartment restricts circular counts to circulars
	// addressing the department (or "all").
	TargetDepartment string
	// Department restricts submission and user counts to one department.
	Department string
	// UserID restricts submission counts to one submitter.
	UserID string
}

// OverviewCounts is the scalar block of the dashboard.
type OverviewCounts struct {
	TotalCirculars      int `db:"total_circulars"`
	ActiveCirculars     int `db:"active_circulars"`
	CompletedCirculars  int `db:"completed_circulars"`
	TotalSubmissions    int `db:"total_submissions"`
	PendingSubmissions  int `db:"pending_submissions"`
	ApprovedSubmissions int `db:"approved_submissions"`
	RejectedSubmissions int `db:"rejected_submissions"`
	TotalUsers          int `db:"total_users"`
}

// StatsRepository exposes read-optimised aggregate queries for the
// dashboard, accreditation, and report endpoints.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository instantiates the repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func targetDepartmentClause(argPos int) string {
	return fmt.Sprintf("(LOWER(target_departments) = 'all' OR ',' || REPLACE(target_departments, ' ', '') || ',' LIKE '%%,' || REPLACE($%d, ' ', '') || ',%%')", argPos)
}

// Overview returns the scalar dashboard counts under the given scope.
func (r *StatsRepository) Overview(ctx context.Context, scope StatsScope) (*OverviewCounts, error) {
	var counts OverviewCounts

	circularQuery := `SELECT COUNT(*) AS total_circulars,
COUNT(*) FILTER (WHERE status = 'active') AS active_circulars,
COUNT(*) FILTER (WHERE status = 'completed') AS completed_circulars
FROM circulars WHERE 1=1`
	var circularArgs []interface{}
	if scope.TargetDepartment != "" {
		circularArgs = append(circularArgs, scope.TargetDepartment)
		circularQuery += " AND " + targetDepartmentClause(len(circularArgs))
	}
	if err := r.db.GetContext(ctx, &counts, circularQuery, circularArgs...); err != nil {
		return nil, fmt.Errorf("count circulars: %w", err)
	}

	submissionQuery := `SELECT COUNT(*) AS total_submissions,
COUNT(*) FILTER (WHERE s.status = 'submitted') AS pending_submissions,
COUNT(*) FILTER (WHERE s.status = 'approved') AS approved_submissions,
COUNT(*) FILTER (WHERE s.status = 'rejected') AS rejected_submissions
FROM submissions s JOIN users u ON u.id = s.user_id WHERE 1=1`
	var submissionArgs []interface{}
	if scope.Department != "" {
		submissionArgs = append(submissionArgs, scope.Department)
		submissionQuery += fmt.Sprintf(" AND u.department = $%d", len(submissionArgs))
	}
	if scope.UserID != "" {
		submissionArgs = append(submissionArgs, scope.UserID)
		submissionQuery += fmt.Sprintf(" AND s.user_id = $%d", len(submissionArgs))
	}
	var subCounts struct {
		Total    int `db:"total_submissions"`
		Pending  int `db:"pending_submissions"`
		Approved int `db:"approved_submissions"`
		Rejected int `db:"rejected_submissions"`
	}
	if err := r.db.GetContext(ctx, &subCounts, submissionQuery, submissionArgs...); err != nil {
		return nil, fmt.Errorf("count submissions: %w", err)
	}
	counts.TotalSubmissions = subCounts.Total
	counts.PendingSubmissions = subCounts.Pending
	counts.ApprovedSubmissions = subCounts.Approved
	counts.RejectedSubmissions = subCounts.Rejected

	userQuery := `SELECT COUNT(*) FROM users WHERE active = TRUE`
	var userArgs []interface{}
	if scope.Department != "" {
		userArgs = append(userArgs, scope.Department)
		userQuery += fmt.Sprintf(" AND department = $%d", len(userArgs))
	}
	if err := r.db.GetContext(ctx, &counts.TotalUsers, userQuery, userArgs...); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	return &counts, nil
}

// DepartmentRollup returns per-department user and submission counts.
// Only departments with at least one user appear; callers merge in
// zero rows for the rest of the fixed department list.
func (r *StatsRepository) DepartmentRollup(ctx context.Context) ([]models.DepartmentStats, error) {
	const query = `SELECT u.department AS department,
COUNT(DISTINCT u.id) AS user_count,
COUNT(s.id) AS total_submissions,
COUNT(s.id) FILTER (WHERE s.status = 'approved') AS approved_submissions
FROM users u LEFT JOIN submissions s ON s.user_id = u.id
WHERE u.department IS NOT NULL AND u.active = TRUE
GROUP BY u.department`

	var rows []models.DepartmentStats
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("department rollup: %w", err)
	}
	return rows, nil
}

// SubmitterRollup returns one user's own submission counts.
func (r *StatsRepository) SubmitterRollup(ctx context.Context, userID string) (*models.SubmitterStats, error) {
	const query = `SELECT COUNT(*) AS total,
COUNT(*) FILTER (WHERE status = 'approved') AS approved,
COUNT(*) FILTER (WHERE status = 'submitted') AS pending,
COUNT(*) FILTER (WHERE status = 'rejected') AS rejected
FROM submissions WHERE user_id = $1`

	var stats models.SubmitterStats
	if err := r.db.GetContext(ctx, &stats, query, userID); err != nil {
		return nil, fmt.Errorf("submitter rollup: %w", err)
	}
	return &stats, nil
}

// CategoryRollup returns per-category circular and submission counts.
// Only categories with at least one circular appear.
func (r *StatsRepository) CategoryRollup(ctx context.Context, targetDepartment string) ([]models.CategorySummary, error) {
	query := `SELECT c.category AS category,
COUNT(DISTINCT c.id) AS total,
COUNT(DISTINCT c.id) FILTER (WHERE c.status = 'active') AS active,
COUNT(DISTINCT c.id) FILTER (WHERE c.status = 'completed') AS completed,
COUNT(s.id) AS total_submissions,
COUNT(s.id) FILTER (WHERE s.status = 'approved') AS approved_submissions
FROM circulars c LEFT JOIN submissions s ON s.circular_id = c.id
WHERE 1=1`
	var args []interface{}
	if targetDepartment != "" {
		args = append(args, targetDepartment)
		query += " AND " + fmt.Sprintf("(LOWER(c.target_departments) = 'all' OR ',' || REPLACE(c.target_departments, ' ', '') || ',' LIKE '%%,' || REPLACE($%d, ' ', '') || ',%%')", len(args))
	}
	query += " GROUP BY c.category"

	var rows []models.CategorySummary
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("category rollup: %w", err)
	}
	return rows, nil
}

// RegulationRollup returns per-regulation-type readiness counts.
func (r *StatsRepository) RegulationRollup(ctx context.Context) ([]models.RegulationReadiness, error) {
	const query = `SELECT c.regulation_type AS regulation_type,
COUNT(DISTINCT c.id) AS total_circulars,
COUNT(DISTINCT c.id) FILTER (WHERE c.status = 'completed') AS completed,
COUNT(DISTINCT c.id) FILTER (WHERE c.status = 'active') AS active,
COUNT(s.id) AS total_submissions,
COUNT(s.id) FILTER (WHERE s.status = 'approved') AS approved_submissions
FROM circulars c LEFT JOIN submissions s ON s.circular_id = c.id
GROUP BY c.regulation_type`

	var rows []models.RegulationReadiness
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("regulation rollup: %w", err)
	}
	return rows, nil
}

// YearOverview returns the scalar counts for one academic year.
func (r *StatsRepository) YearOverview(ctx context.Context, academicYear string) (*OverviewCounts, error) {
	var counts OverviewCounts

	const circularQuery = `SELECT COUNT(*) AS total_circulars,
COUNT(*) FILTER (WHERE status = 'active') AS active_circulars,
COUNT(*) FILTER (WHERE status = 'completed') AS completed_circulars
FROM circulars WHERE academic_year = $1`
	if err := r.db.GetContext(ctx, &counts, circularQuery, academicYear); err != nil {
		return nil, fmt.Errorf("count year circulars: %w", err)
	}

	const submissionQuery = `SELECT COUNT(*) AS total_submissions,
COUNT(*) FILTER (WHERE s.status = 'submitted') AS pending_submissions,
COUNT(*) FILTER (WHERE s.status = 'approved') AS approved_submissions,
COUNT(*) FILTER (WHERE s.status = 'rejected') AS rejected_submissions
FROM submissions s JOIN circulars c ON c.id = s.circular_id WHERE c.academic_year = $1`
	var subCounts struct {
		Total    int `db:"total_submissions"`
		Pending  int `db:"pending_submissions"`
		Approved int `db:"approved_submissions"`
		Rejected int `db:"rejected_submissions"`
	}
	if err := r.db.GetContext(ctx, &subCounts, submissionQuery, academicYear); err != nil {
		return nil, fmt.Errorf("count year submissions: %w", err)
	}
	counts.TotalSubmissions = subCounts.Total
	counts.PendingSubmissions = subCounts.Pending
	counts.ApprovedSubmissions = subCounts.Approved
	counts.RejectedSubmissions = subCounts.Rejected

	return &counts, nil
}

// YearCategoryBreakdown returns per-category counts for one academic year.
func (r *StatsRepository) YearCategoryBreakdown(ctx context.Context, academicYear string) ([]models.CategoryBreakdown, error) {
	const query = `SELECT c.category AS category,
COUNT(DISTINCT c.id) AS total,
COUNT(DISTINCT c.id) FILTER (WHERE c.status = 'completed') AS completed,
COUNT(DISTINCT c.id) FILTER (WHERE c.status = 'active') AS active,
COUNT(s.id) AS submissions,
COUNT(s.id) FILTER (WHERE s.status = 'approved') AS approved
FROM circulars c LEFT JOIN submissions s ON s.circular_id = c.id
WHERE c.academic_year = $1
GROUP BY c.category`

	var rows []models.CategoryBreakdown
	if err := r.db.SelectContext(ctx, &rows, query, academicYear); err != nil {
		return nil, fmt.Errorf("year category breakdown: %w", err)
	}
	return rows, nil
}

// YearDepartmentRollup returns per-department submission counts against
// the year's circulars.
func (r *StatsRepository) YearDepartmentRollup(ctx context.Context, academicYear string) ([]models.DepartmentStats, error) {
	const query = `SELECT u.department AS department,
COUNT(DISTINCT u.id) AS user_count,
COUNT(s.id) FILTER (WHERE c.academic_year = $1) AS total_submissions,
COUNT(s.id) FILTER (WHERE c.academic_year = $1 AND s.status = 'approved') AS approved_submissions
FROM users u
LEFT JOIN submissions s ON s.user_id = u.id
LEFT JOIN circulars c ON c.id = s.circular_id
WHERE u.department IS NOT NULL AND u.active = TRUE
GROUP BY u.department`

	var rows []models.DepartmentStats
	if err := r.db.SelectContext(ctx, &rows, query, academicYear); err != nil {
		return nil, fmt.Errorf("year department rollup: %w", err)
	}
	return rows, nil
}

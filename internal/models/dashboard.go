package models

// DashboardStats is the common stats block every role receives, plus
// the role-specific section filled for the viewer.
type DashboardStats struct {
	TotalCirculars      int     `json:"total_circulars"`
	ActiveCirculars     int     `json:"active_circulars"`
	TotalSubmissions    int     `json:"total_submissions"`
	PendingSubmissions  int     `json:"pending_submissions"`
	ApprovedSubmissions int     `json:"approved_submissions"`
	RejectedSubmissions int     `json:"rejected_submissions"`
	ComplianceRate      float64 `json:"compliance_rate"`
	TotalUsers          int     `json:"total_users"`
	OverdueCount        int     `json:"overdue_count"`

	UpcomingDeadlines []Circular    `json:"upcoming_deadlines"`
	OverdueCirculars  []Circular    `json:"overdue_circulars"`
	RecentActivity    []ActivityLog `json:"recent_activity"`

	// admin / principal
	DepartmentStats []DepartmentStats `json:"department_stats,omitempty"`
	PendingReviews  []Submission      `json:"pending_reviews,omitempty"`

	// hod
	Department *DepartmentStats `json:"department,omitempty"`

	// faculty
	MySubmissions    *SubmitterStats `json:"my_submissions,omitempty"`
	PendingCirculars []Circular      `json:"pending_circulars,omitempty"`
}

// DepartmentStats is one department's compliance rollup. Departments
// with no users report zero-valued rows so report shapes stay stable.
type DepartmentStats struct {
	Department          string  `db:"department" json:"department"`
	UserCount           int     `db:"user_count" json:"user_count"`
	TotalSubmissions    int     `db:"total_submissions" json:"total_submissions"`
	ApprovedSubmissions int     `db:"approved_submissions" json:"approved_submissions"`
	ComplianceRate      float64 `db:"-" json:"compliance_rate"`
}

// SubmitterStats summarizes one user's own submissions.
type SubmitterStats struct {
	Total    int `db:"total" json:"total"`
	Approved int `db:"approved" json:"approved"`
	Pending  int `db:"pending" json:"pending"`
	Rejected int `db:"rejected" json:"rejected"`
}

// CategorySummary is one category's circular/submission rollup.
type CategorySummary struct {
	Category            string  `db:"category" json:"category"`
	Total               int     `db:"total" json:"total"`
	Active              int     `db:"active" json:"active"`
	Completed           int     `db:"completed" json:"completed"`
	TotalSubmissions    int     `db:"total_submissions" json:"total_submissions"`
	ApprovedSubmissions int     `db:"approved_submissions" json:"approved_submissions"`
	ComplianceRate      float64 `db:"-" json:"compliance_rate"`
}

// RegulationReadiness is one regulation body's readiness rollup.
type RegulationReadiness struct {
	RegulationType      string  `db:"regulation_type" json:"regulation_type"`
	TotalCirculars      int     `db:"total_circulars" json:"total_circulars"`
	Completed           int     `db:"completed" json:"completed"`
	Active              int     `db:"active" json:"active"`
	TotalSubmissions    int     `db:"total_submissions" json:"total_submissions"`
	ApprovedSubmissions int     `db:"approved_submissions" json:"approved_submissions"`
	ReadinessScore      float64 `db:"-" json:"readiness_score"`
}

// AccreditationReport aggregates readiness across regulation types.
type AccreditationReport struct {
	Regulations      []RegulationReadiness `json:"regulations"`
	OverallReadiness float64               `json:"overall_readiness"`
}

package models

// CategoryBreakdown is one category's slice of an annual report.
type CategoryBreakdown struct {
	Category    string `db:"category" json:"category"`
	Total       int    `db:"total" json:"total"`
	Completed   int    `db:"completed" json:"completed"`
	Active      int    `db:"active" json:"active"`
	Submissions int    `db:"submissions" json:"submissions"`
	Approved    int    `db:"approved" json:"approved"`
}

// ReportData is the full compliance report for one academic year.
type ReportData struct {
	AcademicYear        string              `json:"academic_year"`
	TotalCirculars      int                 `json:"total_circulars"`
	CompletedCirculars  int                 `json:"completed_circulars"`
	ActiveCirculars     int                 `json:"active_circulars"`
	TotalSubmissions    int                 `json:"total_submissions"`
	ApprovedSubmissions int                 `json:"approved_submissions"`
	RejectedSubmissions int                 `json:"rejected_submissions"`
	PendingSubmissions  int                 `json:"pending_submissions"`
	ComplianceRate      float64             `json:"compliance_rate"`
	Categories          []CategoryBreakdown `json:"categories"`
	Departments         []DepartmentStats   `json:"departments"`
}

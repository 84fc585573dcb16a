package models

import (
	"strings"
	"time"
)

// CircularStatus tracks a circular's lifecycle.
type CircularStatus string

const (
	CircularStatusActive    CircularStatus = "active"
	CircularStatusCompleted CircularStatus = "completed"
	CircularStatusExpired   CircularStatus = "expired"
)

// CircularPriority orders circulars by urgency.
type CircularPriority string

const (
	CircularPriorityHigh   CircularPriority = "high"
	CircularPriorityMedium CircularPriority = "medium"
	CircularPriorityLow    CircularPriority = "low"
)

// TargetAll is the sentinel target-department value addressing every department.
const TargetAll = "all"

// Categories is the closed set of circular categories.
var Categories = []string{
	"Regulation Update", "Hackathon Event", "Workshop / Seminar",
	"Curriculum Update", "Infrastructure", "Faculty Development",
	"Student Activities", "Audit & Accreditation", "Examination",
	"Research & Innovation", "Placement & Internship", "Other",
}

// RegulationTypes is the closed set of regulation bodies tracked for readiness.
var RegulationTypes = []string{"NAAC", "NHERC", "UGC", "AICTE", "NBA", "Other"}

// Circular represents a published compliance directive.
// Status is derived: completed only when every attached submission is
// approved; expired is set by the deadline sweep.
type Circular struct {
	ID                string           `db:"id" json:"id"`
	Title             string           `db:"title" json:"title"`
	Description       string           `db:"description" json:"description"`
	Category          string           `db:"category" json:"category"`
	RegulationType    string           `db:"regulation_type" json:"regulation_type"`
	Deadline          *time.Time       `db:"deadline" json:"deadline,omitempty"`
	AcademicYear      string           `db:"academic_year" json:"academic_year"`
	Priority          CircularPriority `db:"priority" json:"priority"`
	Status            CircularStatus   `db:"status" json:"status"`
	TargetDepartments string           `db:"target_departments" json:"target_departments"`
	FilePath          *string          `db:"file_path" json:"file_path,omitempty"`
	FileName          *string          `db:"file_name" json:"file_name,omitempty"`
	UploadedBy        string           `db:"uploaded_by" json:"uploaded_by"`
	UploaderName      string           `db:"uploader_name" json:"uploader_name,omitempty"`
	SubmissionCount   int              `db:"submission_count" json:"submission_count"`
	ApprovedCount     int              `db:"approved_count" json:"approved_count"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}

// TargetList splits the comma-separated target set. Empty for "all".
func (c *Circular) TargetList() []string {
	if strings.EqualFold(strings.TrimSpace(c.TargetDepartments), TargetAll) {
		return nil
	}
	parts := strings.Split(c.TargetDepartments, ",")
	targets := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			targets = append(targets, trimmed)
		}
	}
	return targets
}

// Targets reports whether the circular addresses the given department.
func (c *Circular) Targets(department string) bool {
	targets := c.TargetList()
	if targets == nil {
		return true
	}
	for _, t := range targets {
		if strings.EqualFold(t, department) {
			return true
		}
	}
	return false
}

// CreateCircularRequest is the publish payload. Category and deadline
// are optional; omitted values are derived from the text.
type CreateCircularRequest struct {
	Title             string     `json:"title" validate:"required"`
	Description       string     `json:"description"`
	Category          string     `json:"category"`
	RegulationType    string     `json:"regulation_type"`
	Deadline          *time.Time `json:"deadline"`
	AcademicYear      string     `json:"academic_year"`
	Priority          string     `json:"priority"`
	TargetDepartments []string   `json:"target_departments"`
	FilePath          *string    `json:"file_path"`
	FileName          *string    `json:"file_name"`
}

// UpdateCircularRequest mutates a published circular. Nil fields are
// left unchanged.
type UpdateCircularRequest struct {
	Title             *string    `json:"title"`
	Description       *string    `json:"description"`
	Category          *string    `json:"category"`
	RegulationType    *string    `json:"regulation_type"`
	Deadline          *time.Time `json:"deadline"`
	AcademicYear      *string    `json:"academic_year"`
	Priority          *string    `json:"priority"`
	TargetDepartments []string   `json:"target_departments"`
}

// CircularWithSubmission pairs a circular with the viewer's own
// submission against it, if any.
type CircularWithSubmission struct {
	Circular
	MySubmission *Submission `json:"my_submission,omitempty"`
}

// CircularDetail is the single-circular view with its submission list.
type CircularDetail struct {
	Circular
	Submissions  []Submission `json:"submissions,omitempty"`
	MySubmission *Submission  `json:"my_submission,omitempty"`
}

// CircularFilter captures listing criteria for circulars.
type CircularFilter struct {
	Category       string
	Status         *CircularStatus
	RegulationType string
	AcademicYear   string
	Search         string

	// TargetDepartment restricts results to circulars addressing the
	// department (or "all"); applied for department-scoped viewers.
	TargetDepartment string
}

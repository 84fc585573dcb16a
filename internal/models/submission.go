package models

import "time"

// SubmissionStatus tracks a submission through its review cycle.
type SubmissionStatus string

const (
	SubmissionStatusPending     SubmissionStatus = "pending"
	SubmissionStatusSubmitted   SubmissionStatus = "submitted"
	SubmissionStatusUnderReview SubmissionStatus = "under_review"
	SubmissionStatusApproved    SubmissionStatus = "approved"
	SubmissionStatusRejected    SubmissionStatus = "rejected"
)

// ReviewAction is the decision taken on a submitted proof.
type ReviewAction string

const (
	ReviewActionApprove ReviewAction = "approve"
	ReviewActionReject  ReviewAction = "reject"
)

// Submission is a user's proof-of-compliance record against one
// circular. At most one non-rejected record exists per (circular,
// user); a rejected record is reused on resubmission so the pair keeps
// a single identity across cycles.
type Submission struct {
	ID           string           `db:"id" json:"id"`
	CircularID   string           `db:"circular_id" json:"circular_id"`
	UserID       string           `db:"user_id" json:"user_id"`
	FilePath     *string          `db:"file_path" json:"file_path,omitempty"`
	FileName     *string          `db:"file_name" json:"file_name,omitempty"`
	Remarks      string           `db:"remarks" json:"remarks"`
	Status       SubmissionStatus `db:"status" json:"status"`
	AdminRemarks *string          `db:"admin_remarks" json:"admin_remarks,omitempty"`
	SubmittedAt  time.Time        `db:"submitted_at" json:"submitted_at"`
	ReviewedAt   *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewedBy   *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`

	// Denormalized joins for list/detail views.
	CircularTitle    string  `db:"circular_title" json:"circular_title,omitempty"`
	CircularCategory string  `db:"circular_category" json:"circular_category,omitempty"`
	UserName         string  `db:"user_name" json:"user_name,omitempty"`
	UserRole         Role    `db:"user_role" json:"user_role,omitempty"`
	UserDepartment   *string `db:"user_department" json:"user_department,omitempty"`
}

// CreateSubmissionRequest is the proof-of-compliance payload.
type CreateSubmissionRequest struct {
	CircularID string  `json:"circular_id" validate:"required"`
	Remarks    string  `json:"remarks"`
	FilePath   *string `json:"file_path"`
	FileName   *string `json:"file_name"`
}

// ReviewRequest is the review decision payload.
type ReviewRequest struct {
	Action  ReviewAction `json:"action" validate:"required,oneof=approve reject"`
	Remarks string       `json:"remarks"`
}

// SubmissionFilter captures listing criteria for submissions.
type SubmissionFilter struct {
	Status     *SubmissionStatus
	CircularID string
	Department string

	// UserID / UserDepartment narrow visibility for faculty and hod viewers.
	UserID         string
	UserDepartment string
}

package models

import "time"

// Activity actions recorded in the audit trail.
const (
	ActivityActionSignup            = "signup"
	ActivityActionLogin             = "login"
	ActivityActionCreateUser        = "create_user"
	ActivityActionToggleUser        = "toggle_user"
	ActivityActionDeleteUser        = "delete_user"
	ActivityActionCreateCircular    = "create_circular"
	ActivityActionUpdateCircular    = "update_circular"
	ActivityActionDeleteCircular    = "delete_circular"
	ActivityActionSubmitProof       = "submit_proof"
	ActivityActionApproveSubmission = "approve_submission"
	ActivityActionRejectSubmission  = "reject_submission"
)

// ActivityLog is an append-only audit entry. Entries are never mutated
// and only removed as cascade cleanup when the actor is deleted.
type ActivityLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   *string   `db:"entity_id" json:"entity_id,omitempty"`
	Details    string    `db:"details" json:"details"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`

	UserName string `db:"user_name" json:"user_name,omitempty"`
	UserRole Role   `db:"user_role" json:"user_role,omitempty"`
}

// ActivityFilter captures listing criteria for the activity trail.
type ActivityFilter struct {
	UserID     string
	Department string
	Page       int
	PageSize   int
}

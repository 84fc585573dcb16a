package models

import "time"

// NotificationType tags the event family that produced a notification.
type NotificationType string

const (
	NotificationTypeCircular   NotificationType = "circular"
	NotificationTypeSubmission NotificationType = "submission"
	NotificationTypeChat       NotificationType = "chat"
	NotificationTypeSystem     NotificationType = "system"
)

// Notification is an in-platform message addressed to exactly one
// user. Title and message are snapshots taken at fan-out time so the
// record stays stable if the source circular is later edited.
type Notification struct {
	ID         string           `db:"id" json:"id"`
	UserID     string           `db:"user_id" json:"user_id"`
	Title      string           `db:"title" json:"title"`
	Message    string           `db:"message" json:"message"`
	Type       NotificationType `db:"type" json:"type"`
	Read       bool             `db:"read" json:"read"`
	CircularID *string          `db:"circular_id" json:"circular_id,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}

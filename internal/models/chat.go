package models

import "time"

// BroadcastGroup is the chat group visible to every user.
const BroadcastGroup = "Broadcast"

// ChatMessageType distinguishes plain text from file messages.
type ChatMessageType string

const (
	ChatMessageTypeText ChatMessageType = "text"
	ChatMessageTypeFile ChatMessageType = "file"
)

// ChatMessage is either a direct message (ReceiverID set, GroupName
// nil) or a group message (GroupName set, ReceiverID nil). Immutable
// once created.
type ChatMessage struct {
	ID          string          `db:"id" json:"id"`
	SenderID    string          `db:"sender_id" json:"sender_id"`
	ReceiverID  *string         `db:"receiver_id" json:"receiver_id,omitempty"`
	GroupName   *string         `db:"group_name" json:"group_name,omitempty"`
	Message     string          `db:"message" json:"message"`
	MessageType ChatMessageType `db:"message_type" json:"message_type"`
	FilePath    *string         `db:"file_path" json:"file_path,omitempty"`
	FileName    *string         `db:"file_name" json:"file_name,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`

	SenderName string `db:"sender_name" json:"sender_name,omitempty"`
	SenderRole Role   `db:"sender_role" json:"sender_role,omitempty"`
}

// SendDirectMessageRequest addresses one user.
type SendDirectMessageRequest struct {
	ReceiverID string  `json:"receiver_id" validate:"required"`
	Message    string  `json:"message"`
	FilePath   *string `json:"file_path"`
	FileName   *string `json:"file_name"`
}

// SendGroupMessageRequest posts into a chat group.
type SendGroupMessageRequest struct {
	GroupName string  `json:"group_name" validate:"required"`
	Message   string  `json:"message"`
	FilePath  *string `json:"file_path"`
	FileName  *string `json:"file_name"`
}

// Contact is a direct-message peer the viewer may chat with.
type Contact struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Role            Role       `json:"role"`
	Department      *string    `json:"department,omitempty"`
	LastMessage     *string    `json:"last_message,omitempty"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty"`
}

// ChatGroup is a group chat summary for the listing view.
type ChatGroup struct {
	Name            string     `json:"name"`
	LastMessage     *string    `json:"last_message,omitempty"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty"`
	SenderName      *string    `json:"sender_name,omitempty"`
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ssn-coe/rcms-api/internal/models"
)

const chatColumns = `m.id, m.sender_id, m.receiver_id, m.group_name, m.message, m.message_type,
m.file_path, m.file_name, m.created_at, u.name AS sender_name, u.role AS sender_role`

// ChatRepository provides database access for chat messages.
type ChatRepository struct {
	db *sqlx.DB
}

// NewChatRepository creates a new instance of ChatRepository.
func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// CreateWithNotifications inserts the message and the receiver's
// notification in one transaction. Group messages carry no fan-out.
func (r *ChatRepository) CreateWithNotifications(ctx context.Context, message *models.ChatMessage, notifications []models.Notification) (err error) {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chat message create: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO chat_messages (id, sender_id, receiver_id, group_name, message, message_type, file_path, file_name, created_at)
VALUES (:id, :sender_id, :receiver_id, :group_name, :message, :message_type, :file_path, :file_name, :created_at)`
	if _, err = tx.NamedExecContext(ctx, query, message); err != nil {
		return fmt.Errorf("create chat message: %w", err)
	}
	if err = insertNotifications(ctx, tx, notifications); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit chat message create: %w", err)
	}
	return nil
}

// DirectHistory returns the conversation between two users in
// chronological order.
func (r *ChatRepository) DirectHistory(ctx context.Context, userA, userB string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT * FROM (
SELECT `+chatColumns+` FROM chat_messages m JOIN users u ON u.id = m.sender_id
WHERE m.group_name IS NULL
AND ((m.sender_id = $1 AND m.receiver_id = $2) OR (m.sender_id = $2 AND m.receiver_id = $1))
ORDER BY m.created_at DESC LIMIT %d) recent ORDER BY created_at ASC`, limit)

	var messages []models.ChatMessage
	if err := r.db.SelectContext(ctx, &messages, query, userA, userB); err != nil {
		return nil, fmt.Errorf("list direct history: %w", err)
	}
	return messages, nil
}

// GroupHistory returns a group's messages in chronological order.
func (r *ChatRepository) GroupHistory(ctx context.Context, groupName string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT * FROM (
SELECT `+chatColumns+` FROM chat_messages m JOIN users u ON u.id = m.sender_id
WHERE m.group_name = $1
ORDER BY m.created_at DESC LIMIT %d) recent ORDER BY created_at ASC`, limit)

	var messages []models.ChatMessage
	if err := r.db.SelectContext(ctx, &messages, query, groupName); err != nil {
		return nil, fmt.Errorf("list group history: %w", err)
	}
	return messages, nil
}

// PeerPreview is the latest direct message exchanged with one peer.
type PeerPreview struct {
	PeerID    string    `db:"peer_id"`
	Message   string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
}

// LatestDirectPreviews returns the viewer's newest message per direct
// conversation.
func (r *ChatRepository) LatestDirectPreviews(ctx context.Context, viewerID string) ([]PeerPreview, error) {
	const query = `SELECT DISTINCT ON (peer_id) peer_id, message, created_at FROM (
SELECT CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END AS peer_id, message, created_at
FROM chat_messages WHERE group_name IS NULL AND (sender_id = $1 OR receiver_id = $1)
) conv ORDER BY peer_id, created_at DESC`

	var previews []PeerPreview
	if err := r.db.SelectContext(ctx, &previews, query, viewerID); err != nil {
		return nil, fmt.Errorf("list direct previews: %w", err)
	}
	return previews, nil
}

// GroupPreview is the latest message posted in one group.
type GroupPreview struct {
	GroupName  string    `db:"group_name"`
	Message    string    `db:"message"`
	SenderName string    `db:"sender_name"`
	CreatedAt  time.Time `db:"created_at"`
}

// LatestGroupPreviews returns the newest message per group in the set.
func (r *ChatRepository) LatestGroupPreviews(ctx context.Context, groups []string) ([]GroupPreview, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT DISTINCT ON (m.group_name) m.group_name, m.message, u.name AS sender_name, m.created_at
FROM chat_messages m JOIN users u ON u.id = m.sender_id
WHERE m.group_name IN (?) ORDER BY m.group_name, m.created_at DESC`, groups)
	if err != nil {
		return nil, fmt.Errorf("build group preview query: %w", err)
	}
	query = r.db.Rebind(query)

	var previews []GroupPreview
	if err := r.db.SelectContext(ctx, &previews, query, args...); err != nil {
		return nil, fmt.Errorf("list group previews: %w", err)
	}
	return previews, nil
}

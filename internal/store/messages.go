package store

import (
	"context"
	"fmt"
	"time"
)

// ConversationMessage is one entry in a task's append-only message log.
type ConversationMessage struct {
	ID        int64
	TaskID    string
	Role      string
	Content   string
	CreatedAt time.Time
}

// AppendMessage adds a message to a task's conversation log.
func (s *Store) AppendMessage(ctx context.Context, taskID, role, content string) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO conversation_messages (task_id, role, content, created_at)
		VALUES (?, ?, ?, ?)`,
		taskID, role, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("append message for %s: %w", taskID, err)
	}
	return nil
}

// MessagesForTask returns a task's messages in insertion order.
func (s *Store) MessagesForTask(ctx context.Context, taskID string) ([]*ConversationMessage, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, task_id, role, content, created_at
		FROM conversation_messages WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("messages for %s: %w", taskID, err)
	}
	defer rows.Close()

	var out []*ConversationMessage
	for rows.Next() {
		var m ConversationMessage
		if err := rows.Scan(&m.ID, &m.TaskID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

package data

import (
	"context"
	"fmt"
	"time"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
)

type historyRepo struct {
	store *Store
}

// NewHistoryRepo creates a group message history repository
func NewHistoryRepo(store *Store) repo.HistoryRepo {
	return &historyRepo{store: store}
}

// Append stores a group message
func (r *historyRepo) Append(ctx context.Context, e *domain.HistoryEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := r.store.exec(ctx, `
		INSERT INTO group_messages (chat_id, topic_id, message_id, sender_id, sender_name, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ChatID, e.TopicID, e.MessageID, e.SenderID, e.SenderName, e.Text, e.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to append group message: %w", err)
	}
	return nil
}

// Recent returns up to limit newest entries, oldest first
func (r *historyRepo) Recent(ctx context.Context, chatID, topicID string, limit int) ([]domain.HistoryEntry, error) {
	query := `
		SELECT chat_id, topic_id, message_id, sender_id, sender_name, text, created_at
		FROM group_messages
		WHERE chat_id = ?`
	args := []interface{}{chatID}
	if topicID != "" {
		query += ` AND topic_id = ?`
		args = append(args, topicID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query group messages: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoryEntry
	for rows.Next() {
		var (
			e         domain.HistoryEntry
			createdAt int64
		)
		if err := rows.Scan(&e.ChatID, &e.TopicID, &e.MessageID, &e.SenderID, &e.SenderName,
			&e.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan group message: %w", err)
		}
		e.CreatedAt = fromUnix(createdAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

package repo

import (
	"context"

	"github.com/relaydesk/relay/internal/biz/domain"
)

// HistoryRepo stores group messages for classifier context
type HistoryRepo interface {
	Append(ctx context.Context, e *domain.HistoryEntry) error

	// Recent returns up to limit newest entries of a chat, oldest first.
	// An empty topicID returns the whole chat.
	Recent(ctx context.Context, chatID, topicID string, limit int) ([]domain.HistoryEntry, error)
}

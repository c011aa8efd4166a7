package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
)

// ContextBuilderUsecase records group messages and assembles recent context
type ContextBuilderUsecase struct {
	historyRepo repo.HistoryRepo
}

// NewContextBuilderUsecase creates a new context builder usecase
func NewContextBuilderUsecase(historyRepo repo.HistoryRepo) *ContextBuilderUsecase {
	return &ContextBuilderUsecase{historyRepo: historyRepo}
}

// Record stores an accepted group message
func (uc *ContextBuilderUsecase) Record(ctx context.Context, msg *domain.Message) error {
	if !msg.IsGroup() || msg.IsEmpty() {
		return nil
	}
	at := msg.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}
	err := uc.historyRepo.Append(ctx, &domain.HistoryEntry{
		ChatID:     msg.ChatID,
		TopicID:    msg.TopicID,
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Text:       msg.Text,
		CreatedAt:  at,
	})
	if err != nil {
		return fmt.Errorf("record group message: %w", err)
	}
	return nil
}

// BuildConversation returns the recent context of the message's chat (and
// topic), excluding the message itself
func (uc *ContextBuilderUsecase) BuildConversation(ctx context.Context, msg *domain.Message) (*domain.Conversation, error) {
	conv := &domain.Conversation{ChatID: msg.ChatID, TopicID: msg.TopicID}
	if !msg.IsGroup() {
		return conv, nil
	}

	// One extra so the current message can be dropped
	recent, err := uc.historyRepo.Recent(ctx, msg.ChatID, msg.TopicID, domain.MaxContextMessages+1)
	if err != nil {
		return nil, fmt.Errorf("get chat history: %w", err)
	}
	conv.Recent = recent
	conv.Recent = conv.ExcludingMessage(msg.ID)
	if len(conv.Recent) > domain.MaxContextMessages {
		conv.Recent = conv.Recent[len(conv.Recent)-domain.MaxContextMessages:]
	}
	return conv, nil
}

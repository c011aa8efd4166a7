package repo

import (
	"context"

	"github.com/relaydesk/relay/internal/biz/domain"
)

// SendTarget addresses an outbound platform message
type SendTarget struct {
	ReceiveID string // chat ID for groups, user ID for direct chats
	IsGroup   bool
	TopicID   string // reply inside this thread when set
}

// TargetOf builds the send target of a job
func TargetOf(job *domain.OutboundJob) SendTarget {
	return SendTarget{ReceiveID: job.Target(), IsGroup: job.IsGroup, TopicID: job.TopicID}
}

// ChatRepo sends messages as one platform identity
type ChatRepo interface {
	// Identity returns the identity this repo sends as
	Identity() domain.Identity

	// SendText sends text and returns the platform message ID
	SendText(ctx context.Context, target SendTarget, text string) (string, error)
}

// Notifier delivers reviewer notifications out of band
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

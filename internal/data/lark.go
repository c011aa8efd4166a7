package data

import (
	"context"
	"errors"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
)

// messenger is the sending side of a Lark client
type messenger interface {
	SendText(ctx context.Context, receiveIDType, receiveID, text string) (string, error)
	ReplyInThread(ctx context.Context, rootID, text string) (string, error)
}

// chatRepo sends messages as one Lark app identity
type chatRepo struct {
	client   messenger
	identity domain.Identity
}

// NewChatRepo creates a chat repository for one sending identity
func NewChatRepo(client messenger, identity domain.Identity) repo.ChatRepo {
	return &chatRepo{client: client, identity: identity}
}

func (r *chatRepo) Identity() domain.Identity {
	return r.identity
}

// SendText sends into a thread when the target has a topic, else to the chat or user
func (r *chatRepo) SendText(ctx context.Context, target repo.SendTarget, text string) (string, error) {
	if target.ReceiveID == "" {
		return "", errors.New("send target has no receive id")
	}
	if target.IsGroup && target.TopicID != "" {
		return r.client.ReplyInThread(ctx, target.TopicID, text)
	}
	idType := larkim.ReceiveIdTypeOpenId
	if target.IsGroup {
		idType = larkim.ReceiveIdTypeChatId
	}
	return r.client.SendText(ctx, idType, target.ReceiveID, text)
}

// operatorNotifier posts reviewer notifications to the operator chat
type operatorNotifier struct {
	client messenger
	chatID string
}

// NewOperatorNotifier creates a notifier posting to the operator chat
func NewOperatorNotifier(client messenger, operatorChatID string) repo.Notifier {
	return &operatorNotifier{client: client, chatID: operatorChatID}
}

func (n *operatorNotifier) Notify(ctx context.Context, text string) error {
	if n.chatID == "" {
		return errors.New("operator chat is not configured")
	}
	_, err := n.client.SendText(ctx, larkim.ReceiveIdTypeChatId, n.chatID, text)
	return err
}

package server

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/infra/feishu"
)

const (
	seenTTL      = 5 * time.Minute
	directoryTTL = 10 * time.Minute
)

// ChatSource is the inbound side of the human identity's Lark app
type ChatSource interface {
	OnMessage(handler feishu.MessageHandler)
	Start(ctx context.Context) error
	GetChatMembers(ctx context.Context, chatID string) ([]feishu.ChatMember, error)
	GetChatInfo(ctx context.Context, chatID string) (*feishu.ChatInfo, error)
}

// Submitter accepts converted messages, normally the listener service
type Submitter interface {
	Submit(msg domain.Message) bool
}

// ChatConfig contains adapter configuration
type ChatConfig struct {
	// OperatorUserID is the operator's open_id
	OperatorUserID string
	// BotOpenID is the human identity's own open_id; mentioning it
	// addresses the operator
	BotOpenID string
}

type chatDirectory struct {
	title     string
	members   map[string]string // open_id -> name
	fetchedAt time.Time
}

// ChatServer turns Lark message events into domain messages
type ChatServer struct {
	source    ChatSource
	submitter Submitter
	config    ChatConfig
	logger    *zap.Logger
	now       func() time.Time

	// Message deduplication cache
	seenMu sync.Mutex
	seen   map[string]time.Time // msgID -> timestamp

	chatsMu sync.Mutex
	chats   map[string]*chatDirectory
}

// NewChatServer creates a new chat server
func NewChatServer(source ChatSource, submitter Submitter, config ChatConfig, logger *zap.Logger) *ChatServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatServer{
		source:    source,
		submitter: submitter,
		config:    config,
		logger:    logger,
		now:       time.Now,
		seen:      make(map[string]time.Time),
		chats:     make(map[string]*chatDirectory),
	}
}

// Start registers the event handler and blocks on the event connection
func (s *ChatServer) Start(ctx context.Context) error {
	s.source.OnMessage(func(msg *feishu.Message) {
		s.handleMessage(ctx, msg)
	})
	return s.source.Start(ctx)
}

func (s *ChatServer) handleMessage(ctx context.Context, msg *feishu.Message) {
	dm, ok := s.Convert(ctx, msg)
	if !ok {
		return
	}
	s.logger.Debug("message received",
		zap.String("message_id", dm.ID),
		zap.String("chat_id", dm.ChatID),
		zap.String("origin", string(dm.Origin)),
		zap.String("text", truncate(dm.Text, 50)))
	if !s.submitter.Submit(dm) {
		s.logger.Warn("listener stopped, message dropped", zap.String("message_id", dm.ID))
	}
}

// Convert builds the domain message for a Lark event. It returns false for
// duplicates and events without text.
func (s *ChatServer) Convert(ctx context.Context, msg *feishu.Message) (domain.Message, bool) {
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return domain.Message{}, false
	}
	if s.isSeen(msg.MsgID) {
		s.logger.Debug("duplicate message ignored", zap.String("message_id", msg.MsgID))
		return domain.Message{}, false
	}

	dm := domain.Message{
		ID:         msg.MsgID,
		Text:       strings.TrimSpace(msg.Content),
		Origin:     domain.OriginDirect,
		ChatID:     msg.ChatID,
		TopicID:    msg.RootID,
		ReplyToID:  msg.ParentID,
		Mentions:   msg.Mentions,
		SenderRole: domain.RoleCustomer,
	}
	if msg.CreateTime > 0 {
		dm.ReceivedAt = time.UnixMilli(msg.CreateTime)
	} else {
		dm.ReceivedAt = s.now()
	}
	if msg.Sender != nil {
		dm.SenderID = msg.Sender.SenderID
	}
	if s.config.OperatorUserID != "" && dm.SenderID == s.config.OperatorUserID {
		dm.SenderRole = domain.RoleOperator
	}

	if msg.ChatType == feishu.ChatTypeGroup {
		dm.Origin = domain.OriginGroup
		dm.AddressesOperator = msg.MentionsBot || s.mentionsOperator(msg.Mentions)
		dir := s.directory(ctx, msg.ChatID, dm.SenderID)
		if dir != nil {
			dm.ChatTitle = dir.title
			dm.SenderName = dir.members[dm.SenderID]
		}
	}
	return dm, true
}

func (s *ChatServer) mentionsOperator(mentions []string) bool {
	for _, id := range mentions {
		if id == "" {
			continue
		}
		if id == s.config.OperatorUserID || id == s.config.BotOpenID {
			return true
		}
	}
	return false
}

// directory returns cached chat title and member names, refreshing them
// when stale or when the sender is unknown
func (s *ChatServer) directory(ctx context.Context, chatID, senderID string) *chatDirectory {
	s.chatsMu.Lock()
	dir := s.chats[chatID]
	s.chatsMu.Unlock()

	if dir != nil && s.now().Sub(dir.fetchedAt) < directoryTTL {
		if _, ok := dir.members[senderID]; ok || senderID == "" {
			return dir
		}
	}

	fresh := &chatDirectory{members: make(map[string]string), fetchedAt: s.now()}
	if info, err := s.source.GetChatInfo(ctx, chatID); err != nil {
		s.logger.Warn("failed to get chat info", zap.String("chat_id", chatID), zap.Error(err))
	} else if info != nil {
		fresh.title = info.Name
	}
	members, err := s.source.GetChatMembers(ctx, chatID)
	if err != nil {
		s.logger.Warn("failed to get chat members", zap.String("chat_id", chatID), zap.Error(err))
	}
	for _, m := range members {
		fresh.members[m.MemberID] = m.Name
	}
	if dir != nil && fresh.title == "" {
		fresh.title = dir.title
	}

	s.chatsMu.Lock()
	s.chats[chatID] = fresh
	s.chatsMu.Unlock()
	return fresh
}

// isSeen reports whether a message was already handled and marks it otherwise
func (s *ChatServer) isSeen(msgID string) bool {
	if msgID == "" {
		return false
	}
	s.seenMu.Lock()
	defer s.seenMu.Unlock()

	now := s.now()
	if _, ok := s.seen[msgID]; ok {
		return true
	}
	s.seen[msgID] = now

	// Clean up when marking new messages to prevent memory leaks
	cutoff := now.Add(-seenTTL)
	for id, ts := range s.seen {
		if ts.Before(cutoff) {
			delete(s.seen, id)
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

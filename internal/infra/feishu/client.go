package feishu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"go.uber.org/zap"
)

// Chat types reported by Lark
const (
	ChatTypeP2P   = "p2p"
	ChatTypeGroup = "group"
)

// Message represents a received Lark message
type Message struct {
	ChatID   string
	MsgID    string
	MsgType  string // text, post
	ChatType string // p2p, group
	Content  string // text content with mention placeholders replaced by names
	RootID   string // thread root, empty outside threads
	ParentID string
	Sender   *Sender
	Mentions []string // mentioned open_ids
	// MentionNames are the display names of mentioned users
	MentionNames []string
	MentionsBot  bool
	CreateTime   int64 // milliseconds
}

// Sender represents the message sender
type Sender struct {
	SenderID   string // open_id
	SenderType string // user, app
	TenantKey  string
}

// ChatMember represents a member in a chat
type ChatMember struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
}

// ChatInfo represents information about a chat
type ChatInfo struct {
	ChatID      string `json:"chat_id"`
	Name        string `json:"name"`
	ChatType    string `json:"chat_type"`
	MemberCount int    `json:"user_count"`
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *Message)

// Config contains the credentials of one Lark app
type Config struct {
	AppID     string
	AppSecret string
}

// Client is a Lark API client bound to one app identity
type Client struct {
	config    Config
	larkCli   *lark.Client
	wsCli     *larkws.Client
	onMessage MessageHandler
	logger    *zap.Logger

	mu        sync.RWMutex
	botOpenID string
	botName   string
}

// NewClient creates a new Lark client
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if config.AppID == "" || config.AppSecret == "" {
		return nil, errors.New("feishu: app id and secret are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config:  config,
		larkCli: lark.NewClient(config.AppID, config.AppSecret),
		logger:  logger.With(zap.String("app_id", config.AppID)),
	}, nil
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// BotOpenID returns the app's own open_id, known after FetchBotInfo
func (c *Client) BotOpenID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.botOpenID
}

// BotName returns the app's display name, known after FetchBotInfo
func (c *Client) BotName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.botName
}

// Start connects via WebSocket and blocks delivering events until ctx ends
func (c *Client) Start(ctx context.Context) error {
	if err := c.FetchBotInfo(ctx); err != nil {
		c.logger.Warn("failed to fetch bot info", zap.Error(err))
	}

	// The SDK acks once the handler returns. onMessage may block on a chat
	// lookup or a full listener buffer, and a late ack makes Lark redeliver.
	// Redeliveries are dropped by message ID before they reach the listener.
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			if msg := c.parseEvent(event); msg != nil && c.onMessage != nil {
				c.onMessage(msg)
			}
			return nil
		})

	c.wsCli = larkws.NewClient(c.config.AppID, c.config.AppSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	c.logger.Info("starting websocket connection")
	return c.wsCli.Start(ctx)
}

// FetchBotInfo loads the app's own open_id and name
func (c *Client) FetchBotInfo(ctx context.Context) error {
	resp, err := c.larkCli.Get(ctx, "/open-apis/bot/v3/info", nil, larkcore.AccessTokenTypeTenant)
	if err != nil {
		return fmt.Errorf("get bot info: %w", err)
	}

	var botResult struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Bot  struct {
			OpenID  string `json:"open_id"`
			AppName string `json:"app_name"`
		} `json:"bot"`
	}
	if err := json.Unmarshal(resp.RawBody, &botResult); err != nil {
		return fmt.Errorf("decode bot info: %w", err)
	}
	if botResult.Code != 0 {
		return fmt.Errorf("API error: %s", botResult.Msg)
	}

	c.mu.Lock()
	c.botOpenID = botResult.Bot.OpenID
	c.botName = botResult.Bot.AppName
	c.mu.Unlock()
	c.logger.Info("bot identity", zap.String("open_id", botResult.Bot.OpenID), zap.String("name", botResult.Bot.AppName))
	return nil
}

// parseEvent converts a receive event, returning nil for unsupported messages
func (c *Client) parseEvent(event *larkim.P2MessageReceiveV1) *Message {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return nil
	}
	rawMsg := event.Event.Message

	msg := &Message{
		ChatID:   strValue(rawMsg.ChatId),
		MsgID:    strValue(rawMsg.MessageId),
		MsgType:  strValue(rawMsg.MessageType),
		ChatType: strValue(rawMsg.ChatType),
		RootID:   strValue(rawMsg.RootId),
		ParentID: strValue(rawMsg.ParentId),
	}
	if rawMsg.CreateTime != nil {
		if ts, err := strconv.ParseInt(*rawMsg.CreateTime, 10, 64); err == nil {
			msg.CreateTime = ts
		}
	}

	if s := event.Event.Sender; s != nil {
		msg.Sender = &Sender{
			SenderType: strValue(s.SenderType),
			TenantKey:  strValue(s.TenantKey),
		}
		if s.SenderId != nil {
			msg.Sender.SenderID = strValue(s.SenderId.OpenId)
		}
	}

	// Map mention keys (@_user_1) to names
	botOpenID := c.BotOpenID()
	mentionMap := make(map[string]string)
	for _, mention := range rawMsg.Mentions {
		if mention.Id != nil && mention.Id.OpenId != nil {
			openID := *mention.Id.OpenId
			msg.Mentions = append(msg.Mentions, openID)
			if botOpenID != "" && openID == botOpenID {
				msg.MentionsBot = true
			}
		}
		if mention.Key != nil && mention.Name != nil {
			mentionMap[*mention.Key] = *mention.Name
			msg.MentionNames = append(msg.MentionNames, *mention.Name)
		}
	}

	content := strValue(rawMsg.Content)
	switch msg.MsgType {
	case "text":
		msg.Content = parseTextContent(content, mentionMap)
	case "post":
		msg.Content = parsePostContent(content, mentionMap)
	default:
		c.logger.Debug("unsupported message type", zap.String("type", msg.MsgType))
		return nil
	}
	return msg
}

// parseTextContent extracts text and replaces mention placeholders with names
func parseTextContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return replaceMentions(parsed.Text, mentionMap)
}

// parsePostContent flattens a rich text message to plain text
func parsePostContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag    string `json:"tag"`
			Text   string `json:"text,omitempty"`
			UserID string `json:"user_id,omitempty"`
		} `json:"content"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}

	var lines []string
	if parsed.Title != "" {
		lines = append(lines, parsed.Title)
	}
	for _, line := range parsed.Content {
		var sb strings.Builder
		for _, elem := range line {
			switch elem.Tag {
			case "text", "a":
				sb.WriteString(elem.Text)
			case "at":
				if name, ok := mentionMap[elem.UserID]; ok {
					sb.WriteString("@" + name)
				} else if elem.UserID != "" {
					sb.WriteString("@" + elem.UserID)
				}
			}
		}
		if sb.Len() > 0 {
			lines = append(lines, sb.String())
		}
	}
	return replaceMentions(strings.Join(lines, "\n"), mentionMap)
}

// replaceMentions replaces mention placeholders (@_user_1) with real names
func replaceMentions(text string, mentionMap map[string]string) string {
	for key, name := range mentionMap {
		text = strings.ReplaceAll(text, key, "@"+name)
	}
	return text
}

func textContent(text string) string {
	contentJSON, _ := json.Marshal(map[string]string{"text": text})
	return string(contentJSON)
}

// SendText sends a text message and returns the platform message ID.
// receiveIDType is larkim.ReceiveIdTypeChatId or larkim.ReceiveIdTypeOpenId.
func (c *Client) SendText(ctx context.Context, receiveIDType, receiveID, text string) (string, error) {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(larkim.MsgTypeText).
			Content(textContent(text)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("send message error: %s", resp.Msg)
	}

	msgID := ""
	if resp.Data != nil {
		msgID = strValue(resp.Data.MessageId)
	}
	c.logger.Debug("message sent", zap.String("receive_id", receiveID), zap.String("message_id", msgID))
	return msgID, nil
}

// ReplyInThread replies to a message inside its thread and returns the new message ID
func (c *Client) ReplyInThread(ctx context.Context, rootID, text string) (string, error) {
	req := larkim.NewReplyMessageReqBuilder().
		MessageId(rootID).
		Body(larkim.NewReplyMessageReqBodyBuilder().
			MsgType(larkim.MsgTypeText).
			Content(textContent(text)).
			ReplyInThread(true).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Reply(ctx, req)
	if err != nil {
		return "", fmt.Errorf("reply message failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("reply message error: %s", resp.Msg)
	}

	msgID := ""
	if resp.Data != nil {
		msgID = strValue(resp.Data.MessageId)
	}
	c.logger.Debug("thread reply sent", zap.String("root_id", rootID), zap.String("message_id", msgID))
	return msgID, nil
}

// GetChatMembers retrieves all members of a group, following pagination
func (c *Client) GetChatMembers(ctx context.Context, chatID string) ([]ChatMember, error) {
	var (
		members   []ChatMember
		pageToken string
	)
	for {
		reqBuilder := larkim.NewGetChatMembersReqBuilder().
			MemberIdType("open_id").
			ChatId(chatID).
			PageSize(100)
		if pageToken != "" {
			reqBuilder = reqBuilder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.ChatMembers.Get(ctx, reqBuilder.Build())
		if err != nil {
			return nil, fmt.Errorf("get chat members failed: %w", err)
		}
		if !resp.Success() {
			return nil, fmt.Errorf("get chat members error: %s", resp.Msg)
		}

		for _, item := range resp.Data.Items {
			members = append(members, ChatMember{
				MemberID: strValue(item.MemberId),
				Name:     strValue(item.Name),
			})
		}

		if resp.Data.PageToken == nil || *resp.Data.PageToken == "" {
			break
		}
		pageToken = *resp.Data.PageToken
	}
	return members, nil
}

// GetChatInfo retrieves information about a chat
func (c *Client) GetChatInfo(ctx context.Context, chatID string) (*ChatInfo, error) {
	req := larkim.NewGetChatReqBuilder().
		ChatId(chatID).
		Build()

	resp, err := c.larkCli.Im.Chat.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get chat info failed: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("get chat info error: %s", resp.Msg)
	}

	info := &ChatInfo{
		ChatID:   chatID,
		Name:     strValue(resp.Data.Name),
		ChatType: strValue(resp.Data.ChatMode),
	}
	if resp.Data.UserCount != nil {
		info.MemberCount, _ = strconv.Atoi(*resp.Data.UserCount)
	}
	return info, nil
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

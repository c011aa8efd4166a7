package domain

import (
	"strings"
	"time"
)

// Origin tells whether a message arrived in a direct chat or a group
type Origin string

const (
	OriginDirect Origin = "direct"
	OriginGroup  Origin = "group"
)

// SenderRole is the business role of a message sender
type SenderRole string

const (
	RoleCustomer    SenderRole = "customer"
	RoleWorker      SenderRole = "worker"
	RoleCoordinator SenderRole = "coordinator"
	RoleManager     SenderRole = "manager"
	RoleBoss        SenderRole = "boss"
	RoleOperator    SenderRole = "operator"
)

// Message is an inbound chat message. It is not modified after it is accepted;
// WithLanguage returns a copy.
type Message struct {
	ID         string
	Text       string
	SenderID   string
	SenderName string
	SenderRole SenderRole
	Origin     Origin
	ChatID     string
	ChatTitle  string
	TopicID    string // thread root, empty outside topics
	TopicName  string
	ReplyToID  string
	Mentions   []string // mentioned user IDs
	// AddressesOperator is set by the platform adapter when the operator or bot
	// account is mentioned by ID or by name.
	AddressesOperator bool
	SourceLanguage    Language
	ReceivedAt        time.Time
}

// IsGroup reports whether the message came from a group chat
func (m *Message) IsGroup() bool {
	return m.Origin == OriginGroup
}

// IsEmpty reports whether the message carries no text
func (m *Message) IsEmpty() bool {
	return strings.TrimSpace(m.Text) == ""
}

// IsCommand reports whether the text is an operator command such as /status
func (m *Message) IsCommand() bool {
	return strings.HasPrefix(strings.TrimSpace(m.Text), "/")
}

// WithLanguage returns a copy of the message annotated with its detected language
func (m Message) WithLanguage(lang Language) Message {
	m.SourceLanguage = lang
	return m
}

// ReplyTarget returns the recipient a reply must be sent to:
// the group chat for group messages, the sender for direct messages.
func (m *Message) ReplyTarget() string {
	if m.IsGroup() {
		return m.ChatID
	}
	return m.SenderID
}

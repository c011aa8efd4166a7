package domain

import (
	"fmt"
	"strings"
	"time"
)

// HistoryEntry is a stored group message used as classifier context
type HistoryEntry struct {
	ChatID     string
	TopicID    string
	MessageID  string
	SenderID   string
	SenderName string
	Text       string
	CreatedAt  time.Time
}

// MaxContextMessages bounds the number of prior turns sent to the classifier
const MaxContextMessages = 10

// Conversation is the recent context of a chat (or topic)
type Conversation struct {
	ChatID  string
	TopicID string
	Recent  []HistoryEntry // oldest first
}

// ExcludingMessage returns the recent history without the given message
func (c *Conversation) ExcludingMessage(msgID string) []HistoryEntry {
	if msgID == "" {
		return c.Recent
	}
	var result []HistoryEntry
	for _, h := range c.Recent {
		if h.MessageID != msgID {
			result = append(result, h)
		}
	}
	return result
}

// FormatForPrompt renders entries as "Name: text" lines, keeping at most
// MaxContextMessages of the newest.
func FormatForPrompt(entries []HistoryEntry) string {
	if len(entries) == 0 {
		return "(no previous messages)"
	}
	if len(entries) > MaxContextMessages {
		entries = entries[len(entries)-MaxContextMessages:]
	}
	var sb strings.Builder
	for _, h := range entries {
		name := h.SenderName
		if name == "" {
			name = h.SenderID
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n", name, h.Text))
	}
	return strings.TrimRight(sb.String(), "\n")
}

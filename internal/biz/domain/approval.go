package domain

import "time"

// PendingApproval is a drafted reply waiting for a reviewer.
// It is keyed by a single-use token and deleted on approve, edit or skip.
type PendingApproval struct {
	Token             string      `json:"token"`
	SenderID          string      `json:"user_id"`
	SenderName        string      `json:"sender_name"`
	IncomingMessage   string      `json:"incoming_msg"`
	Suggestion        string      `json:"ai_suggestion"`
	Language          string      `json:"language"` // language of the suggestion
	MessageType       MessageType `json:"message_type"`
	Urgency           Urgency     `json:"urgency"`
	Confidence        int         `json:"confidence"`
	Action            Action      `json:"action"`
	Reason            string      `json:"reason"`
	EscalateTo        string      `json:"escalate_to,omitempty"`
	IsGroup           bool        `json:"is_group"`
	ChatID            string      `json:"chat_id"`
	ChatTitle         string      `json:"chat_title"`
	TopicID           string      `json:"topic_id"`
	TopicName         string      `json:"topic_name"`
	SourceLanguage    string      `json:"source_language"`
	TranslatedMessage string      `json:"translated_message"`
	OriginalMessage   string      `json:"original_message"`
	CreatedAt         time.Time   `json:"created_at"`
}

// Recipient returns where an approved reply goes
func (a *PendingApproval) Recipient() string {
	if a.IsGroup {
		return a.ChatID
	}
	return a.SenderID
}

// IsExpired reports whether the approval is older than maxAge.
// A zero maxAge never expires.
func (a *PendingApproval) IsExpired(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return now.Sub(a.CreatedAt) > maxAge
}

// ResponseJob builds the outbound job that delivers text for this approval
func (a *PendingApproval) ResponseJob(text string) OutboundJob {
	return OutboundJob{
		RecipientID:    a.Recipient(),
		Text:           text,
		ChatID:         a.ChatID,
		TopicID:        a.TopicID,
		IsGroup:        a.IsGroup,
		TargetLanguage: a.Language,
		OriginalText:   a.IncomingMessage,
		Sender:         IdentityHuman,
		Category:       CategoryResponse,
	}
}

package domain

import "time"

// Correction pairs an AI suggestion with the reviewer's final edit.
// Corrections are append-only and used as few-shot examples.
type Correction struct {
	ID              int64     `json:"id"`
	UserID          string    `json:"user_id"`
	UserName        string    `json:"user_name"`
	IncomingMessage string    `json:"incoming_message"`
	AISuggestion    string    `json:"ai_suggestion"`
	FinalEdit       string    `json:"your_edit"`
	Language        string    `json:"language"`
	IsGroup         bool      `json:"is_group"`
	ChatTitle       string    `json:"chat_title"`
	CreatedAt       time.Time `json:"created_at"`
}

// Interaction records how a reviewed draft was handled
type Interaction struct {
	UserID          string
	IncomingMessage string
	AISuggestion    string
	FinalMessage    string
	WasApproved     bool
	WasEdited       bool
	Confidence      int
	CreatedAt       time.Time
}

// DecisionRecord is the audit row written for each processed message
type DecisionRecord struct {
	MessageID   string
	ChatID      string
	IsGroup     bool
	MessageType MessageType
	Urgency     Urgency
	Confidence  int
	Action      Action
	Reason      string
	CreatedAt   time.Time
}

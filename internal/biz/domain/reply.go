package domain

// Action is the routing outcome for a message
type Action string

const (
	ActionAutoSend      Action = "auto_send"
	ActionQueueApproval Action = "queue_approval"
	ActionEscalate      Action = "escalate"
	ActionSkip          Action = "skip"
)

// ParseAction validates a raw action string, defaulting to queue_approval
func ParseAction(s string) Action {
	switch a := Action(s); a {
	case ActionAutoSend, ActionQueueApproval, ActionEscalate, ActionSkip:
		return a
	}
	return ActionQueueApproval
}

// FallbackReplyText is sent for review when reply generation fails
const FallbackReplyText = "I need to check on this. Let me get back to you."

// ReplyDraft is a drafted reply in the sender's language
type ReplyDraft struct {
	Text              string `json:"reply"`
	Confidence        int    `json:"confidence"`
	SuggestedAction   Action `json:"action"`
	EscalateTo        string `json:"escalate_to,omitempty"`
	Reasoning         string `json:"reasoning"`
	MissingInfo       string `json:"missing_info,omitempty"`
	SuggestedFollowup string `json:"suggested_followup,omitempty"`
	Language          string `json:"language"`
	Degraded          bool   `json:"degraded"`
}

// RequestsEscalation reports whether the draft asked to escalate
func (d *ReplyDraft) RequestsEscalation() bool {
	return d.SuggestedAction == ActionEscalate || d.EscalateTo != ""
}

// FallbackReply is the safe draft used when reply generation fails
func FallbackReply(language, reason string) ReplyDraft {
	return ReplyDraft{
		Text:            FallbackReplyText,
		Confidence:      0,
		SuggestedAction: ActionQueueApproval,
		Reasoning:       "Reply generation failed: " + reason,
		Language:        language,
		Degraded:        true,
	}
}

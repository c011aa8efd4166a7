package domain

import "strings"

// MessageType is the closed set of message categories
type MessageType string

const (
	TypeFactualQuestion   MessageType = "factual_question"
	TypeScheduling        MessageType = "scheduling"
	TypeStatusUpdate      MessageType = "status_update"
	TypeTechnicalProblem  MessageType = "technical_problem"
	TypeCustomerComplaint MessageType = "customer_complaint"
	TypeDecisionRequired  MessageType = "decision_required"
	TypeTaskAssignment    MessageType = "task_assignment"
	TypeAcknowledgment    MessageType = "acknowledgment"
	TypeGeneralChat       MessageType = "general_chat"

	// group only
	TypeQuestionToPerson MessageType = "question_to_specific_person"
	TypeGroupDiscussion  MessageType = "group_discussion"
	TypeFollowUp         MessageType = "follow_up"

	TypeUnknown MessageType = "unknown"
)

var directTypes = []MessageType{
	TypeFactualQuestion, TypeScheduling, TypeStatusUpdate, TypeTechnicalProblem,
	TypeCustomerComplaint, TypeDecisionRequired, TypeTaskAssignment,
	TypeAcknowledgment, TypeGeneralChat,
}

var groupOnlyTypes = []MessageType{TypeQuestionToPerson, TypeGroupDiscussion, TypeFollowUp}

// MessageTypes returns the types a classifier may emit for the given origin
func MessageTypes(group bool) []MessageType {
	out := append([]MessageType{}, directTypes...)
	if group {
		out = append(out, groupOnlyTypes...)
	}
	return out
}

// ParseMessageType validates a raw type string. Group-only types are rejected
// for direct messages.
func ParseMessageType(s string, group bool) (MessageType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range MessageTypes(group) {
		if string(t) == s {
			return t, true
		}
	}
	return TypeUnknown, false
}

// Urgency is the 4-level urgency scale
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// ParseUrgency validates a raw urgency string
func ParseUrgency(s string) (Urgency, bool) {
	switch u := Urgency(strings.ToLower(strings.TrimSpace(s))); u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return u, true
	}
	return UrgencyMedium, false
}

// Entities holds the fixed entity slots. Every slot is always serialized,
// as null when nothing was extracted.
type Entities struct {
	CustomerName    *string `json:"customer_name"`
	ProjectName     *string `json:"project_name"`
	Date            *string `json:"date"`
	Cost            *string `json:"cost"`
	Material        *string `json:"material"`
	ProblemType     *string `json:"problem_type"`
	Location        *string `json:"location"`
	Measurement     *string `json:"measurement"`
	MentionedPerson *string `json:"mentioned_person"`
}

// EntitySlots lists the slot names in serialization order
var EntitySlots = []string{
	"customer_name", "project_name", "date", "cost", "material",
	"problem_type", "location", "measurement", "mentioned_person",
}

// Value returns the trimmed value of a slot, or "" when it is null or blank
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// IsEmpty reports whether no slot carries a value
func (e Entities) IsEmpty() bool {
	for _, v := range e.slots() {
		if Value(v) != "" {
			return false
		}
	}
	return true
}

// Normalize turns blank slot values into null
func (e Entities) Normalize() Entities {
	norm := func(p *string) *string {
		if v := Value(p); v != "" {
			return &v
		}
		return nil
	}
	return Entities{
		CustomerName:    norm(e.CustomerName),
		ProjectName:     norm(e.ProjectName),
		Date:            norm(e.Date),
		Cost:            norm(e.Cost),
		Material:        norm(e.Material),
		ProblemType:     norm(e.ProblemType),
		Location:        norm(e.Location),
		Measurement:     norm(e.Measurement),
		MentionedPerson: norm(e.MentionedPerson),
	}
}

func (e Entities) slots() []*string {
	return []*string{
		e.CustomerName, e.ProjectName, e.Date, e.Cost, e.Material,
		e.ProblemType, e.Location, e.Measurement, e.MentionedPerson,
	}
}

// Classification is the structured judgment produced for one message
type Classification struct {
	MessageType     MessageType `json:"message_type"`
	Urgency         Urgency     `json:"urgency"`
	Confidence      int         `json:"confidence"`
	Entities        Entities    `json:"entities"`
	Intent          string      `json:"intent"`
	SuggestedAction string      `json:"suggested_action"`
	RequiresContext bool        `json:"requires_context"`

	// group only
	Group            bool   `json:"group"`
	ShouldRespond    bool   `json:"should_respond"`
	ResponseReason   string `json:"response_reason"`
	IntendedAudience string `json:"intended_audience"`
	BotMentioned     bool   `json:"bot_mentioned"`
	Topic            string `json:"topic"`

	Reasoning string `json:"reasoning"`
	// Degraded is set when the classification is a fallback after a failed call
	Degraded bool `json:"degraded"`
}

// FallbackClassification is returned when the classifier call fails.
// Confidence 0 means "do not auto-act".
func FallbackClassification(group bool, reason string) Classification {
	c := Classification{
		MessageType:     TypeUnknown,
		Urgency:         UrgencyMedium,
		Confidence:      0,
		Intent:          "Could not classify message",
		SuggestedAction: "manual_review",
		Group:           group,
		Reasoning:       reason,
		Degraded:        true,
	}
	if group {
		c.ShouldRespond = false
		c.ResponseReason = "Classification failed: " + reason
		c.IntendedAudience = "unknown"
	} else {
		c.ShouldRespond = true
	}
	return c
}

// ClampConfidence limits a confidence value to 0..100
func ClampConfidence(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

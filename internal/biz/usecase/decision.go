package usecase

import (
	"fmt"

	"github.com/relaydesk/relay/internal/biz/domain"
)

// DecisionConfig is passed to the decision engine explicitly; there is no
// process-wide auto-reply switch
type DecisionConfig struct {
	AutoReplyEnabled bool
	// AutoSendThreshold applies to safe types in direct chats
	AutoSendThreshold int
	// QueueThreshold separates "review" from "review with warning"
	QueueThreshold int
	// VeryHighConfidence auto-sends any direct message type
	VeryHighConfidence int
	// GroupAddressedConfidence auto-sends group messages addressed to the bot
	// and group factual questions
	GroupAddressedConfidence int
	// GroupCriticalConfidence auto-sends critical technical problems in groups
	GroupCriticalConfidence int
	AlwaysQueueTypes        map[domain.MessageType]bool
	SafeAutoSendTypes       map[domain.MessageType]bool
}

// DefaultDecisionConfig returns the defaults. Auto-reply is off.
func DefaultDecisionConfig() DecisionConfig {
	return DecisionConfig{
		AutoReplyEnabled:         false,
		AutoSendThreshold:        85,
		QueueThreshold:           60,
		VeryHighConfidence:       90,
		GroupAddressedConfidence: 90,
		GroupCriticalConfidence:  85,
		AlwaysQueueTypes: map[domain.MessageType]bool{
			domain.TypeDecisionRequired:  true,
			domain.TypeCustomerComplaint: true,
		},
		SafeAutoSendTypes: map[domain.MessageType]bool{
			domain.TypeAcknowledgment:  true,
			domain.TypeStatusUpdate:    true,
			domain.TypeFactualQuestion: true,
		},
	}
}

// Decider maps a classification and a draft to a decision
type Decider interface {
	Decide(c domain.Classification, d domain.ReplyDraft) domain.Decision
}

// DecisionEngine is the rule-table decider. It has no side effects.
type DecisionEngine struct {
	config DecisionConfig
}

// NewDecisionEngine creates a decision engine
func NewDecisionEngine(config DecisionConfig) *DecisionEngine {
	return &DecisionEngine{config: config}
}

// Config returns the engine configuration
func (e *DecisionEngine) Config() DecisionConfig {
	return e.config
}

// Decide applies the group or direct rule table; the first matching rule wins
func (e *DecisionEngine) Decide(c domain.Classification, d domain.ReplyDraft) domain.Decision {
	if c.Group {
		return e.decideGroup(c, d)
	}
	return e.decideDirect(c, d)
}

func (e *DecisionEngine) decideDirect(c domain.Classification, d domain.ReplyDraft) domain.Decision {
	cfg := e.config
	conf := d.Confidence

	if dec, ok := e.commonRules(c, d); ok {
		return dec
	}

	if d.RequestsEscalation() {
		return escalate(d)
	}

	if conf >= cfg.AutoSendThreshold && cfg.SafeAutoSendTypes[c.MessageType] {
		return decision(domain.ActionAutoSend, conf, "High confidence (%d%%) and safe type %s", conf, c.MessageType)
	}

	if conf >= cfg.VeryHighConfidence {
		return decision(domain.ActionAutoSend, conf, "Very high confidence (%d%%)", conf)
	}

	if conf >= cfg.QueueThreshold {
		return decision(domain.ActionQueueApproval, conf, "Moderate confidence (%d%%), review", conf)
	}

	dec := decision(domain.ActionQueueApproval, conf, "Low confidence (%d%%)", conf)
	dec.Warning = "Uncertain draft, check before sending"
	return dec
}

// decideGroup never falls through to auto_send
func (e *DecisionEngine) decideGroup(c domain.Classification, d domain.ReplyDraft) domain.Decision {
	cfg := e.config
	conf := d.Confidence

	if dec, ok := e.commonRules(c, d); ok {
		return dec
	}

	if c.BotMentioned && conf >= cfg.GroupAddressedConfidence {
		return decision(domain.ActionAutoSend, conf, "Bot addressed and very high confidence (%d%%)", conf)
	}

	if c.MessageType == domain.TypeFactualQuestion && conf >= cfg.GroupAddressedConfidence {
		return decision(domain.ActionAutoSend, conf, "Factual question and high confidence (%d%%)", conf)
	}

	if c.MessageType == domain.TypeTechnicalProblem {
		if c.Urgency == domain.UrgencyCritical && conf >= cfg.GroupCriticalConfidence {
			return decision(domain.ActionAutoSend, conf, "Critical problem and good confidence (%d%%)", conf)
		}
		return decision(domain.ActionQueueApproval, conf, "Technical problem needs review")
	}

	if d.RequestsEscalation() {
		return escalate(d)
	}

	dec := decision(domain.ActionQueueApproval, conf, "Group message, review recommended (confidence %d%%)", conf)
	if conf < cfg.QueueThreshold {
		dec.Warning = "Uncertain draft, check before sending"
	}
	return dec
}

// commonRules are the global switch and the always-queue types
func (e *DecisionEngine) commonRules(c domain.Classification, d domain.ReplyDraft) (domain.Decision, bool) {
	if !e.config.AutoReplyEnabled {
		return decision(domain.ActionQueueApproval, d.Confidence, "Auto-reply disabled"), true
	}
	if e.config.AlwaysQueueTypes[c.MessageType] {
		return decision(domain.ActionQueueApproval, d.Confidence, "%s requires human review", c.MessageType), true
	}
	return domain.Decision{}, false
}

func escalate(d domain.ReplyDraft) domain.Decision {
	dec := decision(domain.ActionEscalate, d.Confidence, "Draft requested escalation")
	dec.EscalateTo = d.EscalateTo
	if dec.EscalateTo != "" {
		dec.Reason = "Draft requested escalation to " + dec.EscalateTo
	}
	return dec
}

func decision(a domain.Action, confidence int, format string, args ...interface{}) domain.Decision {
	return domain.Decision{Action: a, Reason: fmt.Sprintf(format, args...), Confidence: confidence}
}

package domain

// Decision is the final routing decision for one message
type Decision struct {
	Action     Action `json:"action"`
	Reason     string `json:"reason"`
	EscalateTo string `json:"escalate_to,omitempty"`
	Confidence int    `json:"confidence"`
	// Warning flags low-confidence drafts for the reviewer
	Warning string `json:"warning,omitempty"`
}

// NeedsReview reports whether the decision creates a pending approval
func (d Decision) NeedsReview() bool {
	return d.Action == ActionQueueApproval || d.Action == ActionEscalate
}

// Skip returns a terminal skip decision
func Skip(reason string) Decision {
	return Decision{Action: ActionSkip, Reason: reason}
}

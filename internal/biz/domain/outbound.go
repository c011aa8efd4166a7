package domain

import (
	"fmt"
	"time"
)

// Identity is the platform account that transmits an outbound job
type Identity string

const (
	// IdentityHuman is the operator's own account, used for conversation
	IdentityHuman Identity = "human"
	// IdentityBroadcast is reserved for translation fan-out
	IdentityBroadcast Identity = "broadcast"
)

// Identities lists every sending identity
var Identities = []Identity{IdentityHuman, IdentityBroadcast}

// Category is the purpose of an outbound job
type Category string

const (
	CategoryResponse     Category = "response"
	CategoryTranslation  Category = "translation"
	CategoryNotification Category = "notification"
)

// OutboundJob is one queued outbound message
type OutboundJob struct {
	ID             int64
	RecipientID    string
	Text           string
	ChatID         string
	TopicID        string
	IsGroup        bool
	TargetLanguage string
	OriginalText   string
	Sender         Identity
	Category       Category
	CreatedAt      time.Time
	Attempts       int
	AvailableAt    time.Time
}

// Target returns the chat or user the job is addressed to
func (j *OutboundJob) Target() string {
	if j.IsGroup && j.ChatID != "" {
		return j.ChatID
	}
	return j.RecipientID
}

// RoutingPolicy maps each category to the only identity allowed to send it
type RoutingPolicy map[Category]Identity

// DefaultRoutingPolicy sends translations as the broadcast identity and
// everything else as the human identity
func DefaultRoutingPolicy() RoutingPolicy {
	return RoutingPolicy{
		CategoryResponse:     IdentityHuman,
		CategoryNotification: IdentityHuman,
		CategoryTranslation:  IdentityBroadcast,
	}
}

// Check returns ErrRouteViolation when the job's sender is not the identity
// its category requires. Unknown categories are violations.
func (p RoutingPolicy) Check(job *OutboundJob) error {
	want, ok := p[job.Category]
	if !ok {
		return fmt.Errorf("%w: unknown category %q", ErrRouteViolation, job.Category)
	}
	if job.Sender != want {
		return fmt.Errorf("%w: category %s must be sent as %s, job has %s",
			ErrRouteViolation, job.Category, want, job.Sender)
	}
	return nil
}

// IdentityFor returns the identity required for a category
func (p RoutingPolicy) IdentityFor(c Category) Identity {
	return p[c]
}

// DeadLetter is a job that was refused or ran out of attempts
type DeadLetter struct {
	JobID    int64
	Job      OutboundJob
	Reason   string
	FailedAt time.Time
}

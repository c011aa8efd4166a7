package repo

import (
	"context"
	"time"

	"github.com/relaydesk/relay/internal/biz/domain"
)

// Resolution is what resolving an approval writes, all in one unit of work.
// A nil field writes nothing.
type Resolution struct {
	Job         *domain.OutboundJob
	Correction  *domain.Correction
	Interaction *domain.Interaction
}

// ResolveFunc builds the resolution for a loaded approval
type ResolveFunc func(a *domain.PendingApproval) (*Resolution, error)

// ApprovalRepo stores pending approvals
type ApprovalRepo interface {
	// Create inserts a pending approval
	Create(ctx context.Context, a *domain.PendingApproval) error

	// Get returns an approval by token, or domain.ErrNotFound
	Get(ctx context.Context, token string) (*domain.PendingApproval, error)

	// List returns all pending approvals, oldest first
	List(ctx context.Context) ([]*domain.PendingApproval, error)

	// Resolve loads the approval, writes the resolution and deletes the
	// approval atomically. Returns domain.ErrNotFound for unknown tokens and the
	// new job ID when a job was written.
	Resolve(ctx context.Context, token string, fn ResolveFunc) (*domain.PendingApproval, int64, error)

	// ListOlderThan returns approvals created before the cutoff
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.PendingApproval, error)

	// Count returns the number of pending approvals
	Count(ctx context.Context) (int, error)
}

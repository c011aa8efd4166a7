package repo

import (
	"context"
	"time"

	"github.com/relaydesk/relay/internal/biz/domain"
)

// OutboundQueue is the durable FIFO of outbound jobs.
// A broker-backed implementation can replace the SQLite one without caller changes.
type OutboundQueue interface {
	// Enqueue appends a job and returns its ID
	Enqueue(ctx context.Context, job *domain.OutboundJob) (int64, error)

	// DequeueOldest returns the oldest job for the sender identity that is
	// available at now, or nil when there is none. The job stays queued until
	// Ack, Reschedule or DeadLetter.
	DequeueOldest(ctx context.Context, sender domain.Identity, now time.Time) (*domain.OutboundJob, error)

	// DequeueUnrouted returns the oldest available job whose sender is none
	// of known, or nil when there is none. No dispatcher owns such a job.
	DequeueUnrouted(ctx context.Context, known []domain.Identity, now time.Time) (*domain.OutboundJob, error)

	// Ack deletes a job
	Ack(ctx context.Context, id int64) error

	// Reschedule records a failed attempt and delays the job until at
	Reschedule(ctx context.Context, id int64, attempts int, at time.Time) error

	// DeadLetter moves a job to the dead-letter table
	DeadLetter(ctx context.Context, job *domain.OutboundJob, reason string) error

	// Depth returns the number of queued jobs for a sender identity
	Depth(ctx context.Context, sender domain.Identity) (int, error)

	// DeadLetters returns the newest dead letters
	DeadLetters(ctx context.Context, limit int) ([]domain.DeadLetter, error)
}

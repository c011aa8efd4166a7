package repo

import (
	"context"

	"github.com/relaydesk/relay/internal/biz/domain"
)

// DirectoryRepo is the read side of the business directory.
// Matching rules live in the resolver, backends only list records.
type DirectoryRepo interface {
	Projects(ctx context.Context) ([]domain.Project, error)
	Customers(ctx context.Context) ([]domain.Customer, error)
	Schedule(ctx context.Context) ([]domain.ScheduleEntry, error)
	Issues(ctx context.Context) ([]domain.PastIssue, error)
	Workers(ctx context.Context) ([]domain.Worker, error)
}

// DirectoryWriter replaces directory contents from a seed
type DirectoryWriter interface {
	Replace(ctx context.Context, dir *domain.Directory) error
}

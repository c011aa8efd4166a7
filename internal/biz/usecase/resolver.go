package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
)

// ResolverUsecase maps extracted entities to directory facts
type ResolverUsecase struct {
	directory repo.DirectoryRepo
	logger    *zap.Logger
}

// NewResolverUsecase creates a new context resolver
func NewResolverUsecase(directory repo.DirectoryRepo, logger *zap.Logger) *ResolverUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResolverUsecase{directory: directory, logger: logger}
}

// Resolve looks up facts for the entities. The result is never empty:
// when nothing is found it carries the no-data marker. Directory errors
// are logged and treated as no match.
func (uc *ResolverUsecase) Resolve(ctx context.Context, e domain.Entities) *domain.ResolvedContext {
	rc := &domain.ResolvedContext{}

	customerName := domain.Value(e.CustomerName)
	projectName := domain.Value(e.ProjectName)
	if customerName != "" || projectName != "" {
		rc.Project = uc.findProject(ctx, projectName, customerName)
		if rc.Project != nil {
			rc.Customer = uc.findCustomer(ctx, rc.Project.CustomerID, "")
		} else if customerName != "" {
			rc.Customer = uc.findCustomer(ctx, "", customerName)
		}
	}

	person := domain.Value(e.MentionedPerson)
	if person != "" {
		rc.Worker = uc.findWorker(ctx, person)
	}

	if date := domain.Value(e.Date); date != "" {
		worker := ""
		if rc.Worker != nil {
			worker = rc.Worker.Name
		}
		rc.Schedule = uc.schedule(ctx, date, worker)
	}

	if problem := domain.Value(e.ProblemType); problem != "" {
		rc.SimilarIssues = uc.similarIssues(ctx, problem)
	}

	if rc.IsEmpty() {
		rc.Note = domain.NoDataNote
	}
	return rc
}

// findProject matches by project ID or key first, then by customer name substring
func (uc *ResolverUsecase) findProject(ctx context.Context, projectID, customerName string) *domain.Project {
	projects, err := uc.directory.Projects(ctx)
	if err != nil {
		uc.logger.Warn("failed to list projects", zap.Error(err))
		return nil
	}
	if projectID != "" {
		for i := range projects {
			if strings.EqualFold(projects[i].ProjectID, projectID) || strings.EqualFold(projects[i].Key, projectID) {
				return &projects[i]
			}
		}
	}
	if customerName != "" {
		for i := range projects {
			if containsFold(projects[i].CustomerName, customerName) {
				return &projects[i]
			}
		}
	}
	return nil
}

func (uc *ResolverUsecase) findCustomer(ctx context.Context, customerID, name string) *domain.Customer {
	customers, err := uc.directory.Customers(ctx)
	if err != nil {
		uc.logger.Warn("failed to list customers", zap.Error(err))
		return nil
	}
	if customerID != "" {
		for i := range customers {
			if customers[i].CustomerID == customerID {
				return &customers[i]
			}
		}
	}
	if name != "" {
		for i := range customers {
			if containsFold(customers[i].Name, name) {
				return &customers[i]
			}
		}
	}
	return nil
}

func (uc *ResolverUsecase) findWorker(ctx context.Context, name string) *domain.Worker {
	workers, err := uc.directory.Workers(ctx)
	if err != nil {
		uc.logger.Warn("failed to list workers", zap.Error(err))
		return nil
	}
	for i := range workers {
		if strings.EqualFold(workers[i].Name, name) {
			return &workers[i]
		}
	}
	return nil
}

// schedule returns all entries on date, narrowed to worker when set
func (uc *ResolverUsecase) schedule(ctx context.Context, date, worker string) []domain.ScheduleEntry {
	entries, err := uc.directory.Schedule(ctx)
	if err != nil {
		uc.logger.Warn("failed to list schedule", zap.Error(err))
		return nil
	}
	var out []domain.ScheduleEntry
	for _, s := range entries {
		if s.Date != date {
			continue
		}
		if worker != "" && !strings.EqualFold(s.Worker, worker) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (uc *ResolverUsecase) similarIssues(ctx context.Context, problem string) []domain.PastIssue {
	issues, err := uc.directory.Issues(ctx)
	if err != nil {
		uc.logger.Warn("failed to list past issues", zap.Error(err))
		return nil
	}
	var out []domain.PastIssue
	for _, is := range issues {
		if containsFold(is.IssueType, problem) {
			out = append(out, is)
		}
	}
	return out
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

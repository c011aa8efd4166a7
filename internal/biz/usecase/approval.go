package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
)

// ApprovalUsecase implements the review lifecycle: approve, edit, skip, preview
type ApprovalUsecase struct {
	approvals   repo.ApprovalRepo
	translation *TranslationUsecase
	logger      *zap.Logger
	now         func() time.Time
}

// NewApprovalUsecase creates a new approval usecase
func NewApprovalUsecase(approvals repo.ApprovalRepo, translation *TranslationUsecase, logger *zap.Logger) *ApprovalUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalUsecase{
		approvals:   approvals,
		translation: translation,
		logger:      logger,
		now:         time.Now,
	}
}

// NewToken returns an unguessable single-use token
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Create stores a pending approval and returns its token
func (uc *ApprovalUsecase) Create(ctx context.Context, a *domain.PendingApproval) (string, error) {
	if a.Token == "" {
		a.Token = NewToken()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = uc.now()
	}
	if err := uc.approvals.Create(ctx, a); err != nil {
		return "", fmt.Errorf("create approval: %w", err)
	}
	uc.logger.Info("approval queued",
		zap.String("token", a.Token),
		zap.String("sender", a.SenderName),
		zap.String("action", string(a.Action)))
	return a.Token, nil
}

// List returns all pending approvals
func (uc *ApprovalUsecase) List(ctx context.Context) ([]*domain.PendingApproval, error) {
	return uc.approvals.List(ctx)
}

// Get returns one approval or domain.ErrNotFound
func (uc *ApprovalUsecase) Get(ctx context.Context, token string) (*domain.PendingApproval, error) {
	return uc.approvals.Get(ctx, token)
}

// Count returns the number of pending approvals
func (uc *ApprovalUsecase) Count(ctx context.Context) (int, error) {
	return uc.approvals.Count(ctx)
}

// Approve enqueues the suggestion as a response and deletes the approval.
// Unknown or consumed tokens return domain.ErrNotFound.
func (uc *ApprovalUsecase) Approve(ctx context.Context, token string) (int64, error) {
	_, jobID, err := uc.approvals.Resolve(ctx, token, func(a *domain.PendingApproval) (*repo.Resolution, error) {
		job := a.ResponseJob(a.Suggestion)
		return &repo.Resolution{
			Job: &job,
			Interaction: &domain.Interaction{
				UserID:          a.SenderID,
				IncomingMessage: a.IncomingMessage,
				AISuggestion:    a.Suggestion,
				FinalMessage:    a.Suggestion,
				WasApproved:     true,
				Confidence:      a.Confidence,
				CreatedAt:       uc.now(),
			},
		}, nil
	})
	if err != nil {
		return 0, err
	}
	uc.logger.Info("approval sent", zap.String("token", token), zap.Int64("job_id", jobID))
	return jobID, nil
}

// Edit enqueues the reviewer's text as a response, records a correction
// against the original suggestion and deletes the approval
func (uc *ApprovalUsecase) Edit(ctx context.Context, token, text string) (int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, domain.ErrEmptyMessage
	}
	_, jobID, err := uc.approvals.Resolve(ctx, token, func(a *domain.PendingApproval) (*repo.Resolution, error) {
		job := a.ResponseJob(text)
		now := uc.now()
		return &repo.Resolution{
			Job: &job,
			Correction: &domain.Correction{
				UserID:          a.SenderID,
				UserName:        a.SenderName,
				IncomingMessage: a.IncomingMessage,
				AISuggestion:    a.Suggestion,
				FinalEdit:       text,
				Language:        a.Language,
				IsGroup:         a.IsGroup,
				ChatTitle:       a.ChatTitle,
				CreatedAt:       now,
			},
			Interaction: &domain.Interaction{
				UserID:          a.SenderID,
				IncomingMessage: a.IncomingMessage,
				AISuggestion:    a.Suggestion,
				FinalMessage:    text,
				WasApproved:     true,
				WasEdited:       true,
				Confidence:      a.Confidence,
				CreatedAt:       now,
			},
		}, nil
	})
	if err != nil {
		return 0, err
	}
	uc.logger.Info("approval edited and sent", zap.String("token", token), zap.Int64("job_id", jobID))
	return jobID, nil
}

// Skip deletes the approval without any other write
func (uc *ApprovalUsecase) Skip(ctx context.Context, token string) error {
	_, _, err := uc.approvals.Resolve(ctx, token, func(*domain.PendingApproval) (*repo.Resolution, error) {
		return &repo.Resolution{}, nil
	})
	if err != nil {
		return err
	}
	uc.logger.Info("approval skipped", zap.String("token", token))
	return nil
}

// Preview translates the suggestion without touching the approval
func (uc *ApprovalUsecase) Preview(ctx context.Context, token, language string) (TranslationResult, error) {
	a, err := uc.approvals.Get(ctx, token)
	if err != nil {
		return TranslationResult{}, err
	}
	source := a.Language
	if source == "" {
		source = SourceAuto
	}
	return uc.translation.Translate(ctx, a.Suggestion, language, source, a.IncomingMessage), nil
}

// ExpireStale skips approvals older than maxAge and returns how many were
// skipped. A zero maxAge disables expiry.
func (uc *ApprovalUsecase) ExpireStale(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	stale, err := uc.approvals.ListOlderThan(ctx, uc.now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("list stale approvals: %w", err)
	}
	skipped := 0
	for _, a := range stale {
		if err := uc.Skip(ctx, a.Token); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return skipped, err
		}
		skipped++
	}
	return skipped, nil
}

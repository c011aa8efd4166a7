package repo

import (
	"context"

	"github.com/relaydesk/relay/internal/biz/domain"
)

// CorrectionRepo stores reviewer corrections (append-only)
type CorrectionRepo interface {
	Append(ctx context.Context, c *domain.Correction) (int64, error)

	// Recent returns the newest corrections for a language
	Recent(ctx context.Context, language string, limit int) ([]domain.Correction, error)
}

// AuditRepo records processing outcomes
type AuditRepo interface {
	RecordDecision(ctx context.Context, rec *domain.DecisionRecord) error
}

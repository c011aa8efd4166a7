package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
)

// approvalRepo implements the pending approval repository
type approvalRepo struct {
	store *Store
}

// NewApprovalRepo creates a new pending approval repository
func NewApprovalRepo(store *Store) repo.ApprovalRepo {
	return &approvalRepo{store: store}
}

const approvalColumns = `token, user_id, sender_name, incoming_msg, ai_suggestion, language,
	message_type, urgency, confidence, action, reason, escalate_to, is_group, chat_id, chat_title,
	topic_id, topic_name, source_language, translated_message, original_message, created_at`

// Create inserts a pending approval
func (r *approvalRepo) Create(ctx context.Context, a *domain.PendingApproval) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := r.store.exec(ctx, `
		INSERT INTO pending_approvals (`+approvalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.Token, a.SenderID, a.SenderName, a.IncomingMessage, a.Suggestion, a.Language,
		string(a.MessageType), string(a.Urgency), a.Confidence, string(a.Action), a.Reason, a.EscalateTo,
		boolInt(a.IsGroup), a.ChatID, a.ChatTitle, a.TopicID, a.TopicName,
		a.SourceLanguage, a.TranslatedMessage, a.OriginalMessage, a.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert approval: %w", err)
	}
	return nil
}

// Get returns an approval by token
func (r *approvalRepo) Get(ctx context.Context, token string) (*domain.PendingApproval, error) {
	row := r.store.db.QueryRowContext(ctx,
		`SELECT `+approvalColumns+` FROM pending_approvals WHERE token = ?`, token)
	a, err := scanApproval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query approval: %w", err)
	}
	return a, nil
}

// List returns all pending approvals, oldest first
func (r *approvalRepo) List(ctx context.Context) ([]*domain.PendingApproval, error) {
	rows, err := r.store.db.QueryContext(ctx,
		`SELECT `+approvalColumns+` FROM pending_approvals ORDER BY created_at ASC, token ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query approvals: %w", err)
	}
	defer rows.Close()
	return scanApprovals(rows)
}

// ListOlderThan returns approvals created before cutoff
func (r *approvalRepo) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.PendingApproval, error) {
	rows, err := r.store.db.QueryContext(ctx,
		`SELECT `+approvalColumns+` FROM pending_approvals WHERE created_at < ? ORDER BY created_at ASC`,
		cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query stale approvals: %w", err)
	}
	defer rows.Close()
	return scanApprovals(rows)
}

// Count returns the number of pending approvals
func (r *approvalRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_approvals`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count approvals: %w", err)
	}
	return n, nil
}

// Resolve loads the approval, writes the resolution and deletes the approval
// in one transaction. A second Resolve of the same token finds nothing.
func (r *approvalRepo) Resolve(ctx context.Context, token string, fn repo.ResolveFunc) (*domain.PendingApproval, int64, error) {
	var (
		approval *domain.PendingApproval
		jobID    int64
	)
	err := r.store.inTx(ctx, func(tx *sql.Tx) error {
		jobID = 0
		row := tx.QueryRowContext(ctx,
			`SELECT `+approvalColumns+` FROM pending_approvals WHERE token = ?`, token)
		a, err := scanApproval(row)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to query approval: %w", err)
		}
		approval = a

		res, err := fn(a)
		if err != nil {
			return err
		}
		if res != nil {
			if res.Job != nil {
				if jobID, err = insertJob(ctx, tx, res.Job, time.Now()); err != nil {
					return err
				}
			}
			if res.Correction != nil {
				if _, err := insertCorrection(ctx, tx, res.Correction); err != nil {
					return err
				}
			}
			if res.Interaction != nil {
				if err := insertInteraction(ctx, tx, res.Interaction); err != nil {
					return err
				}
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_approvals WHERE token = ?`, token); err != nil {
			return fmt.Errorf("failed to delete approval: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return approval, jobID, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApproval(row rowScanner) (*domain.PendingApproval, error) {
	var (
		a                        domain.PendingApproval
		msgType, urgency, action string
		isGroup                  int
		createdAt                int64
	)
	err := row.Scan(
		&a.Token, &a.SenderID, &a.SenderName, &a.IncomingMessage, &a.Suggestion, &a.Language,
		&msgType, &urgency, &a.Confidence, &action, &a.Reason, &a.EscalateTo,
		&isGroup, &a.ChatID, &a.ChatTitle, &a.TopicID, &a.TopicName,
		&a.SourceLanguage, &a.TranslatedMessage, &a.OriginalMessage, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	a.MessageType = domain.MessageType(msgType)
	a.Urgency = domain.Urgency(urgency)
	a.Action = domain.Action(action)
	a.IsGroup = isGroup == 1
	a.CreatedAt = fromUnix(createdAt)
	return &a, nil
}

func scanApprovals(rows *sql.Rows) ([]*domain.PendingApproval, error) {
	var out []*domain.PendingApproval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

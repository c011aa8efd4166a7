package data

import (
	"context"
	"fmt"
	"time"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
)

// correctionRepo implements the append-only correction log
type correctionRepo struct {
	store *Store
}

// NewCorrectionRepo creates a new correction repository
func NewCorrectionRepo(store *Store) repo.CorrectionRepo {
	return &correctionRepo{store: store}
}

func insertCorrection(ctx context.Context, ex execer, c *domain.Correction) (int64, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	res, err := ex.ExecContext(ctx, `
		INSERT INTO message_corrections (user_id, user_name, incoming_message, ai_suggestion, your_edit,
			language, is_group, chat_title, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.UserID, c.UserName, c.IncomingMessage, c.AISuggestion, c.FinalEdit,
		c.Language, boolInt(c.IsGroup), c.ChatTitle, c.CreatedAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to insert correction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read correction id: %w", err)
	}
	c.ID = id
	return id, nil
}

// Append records a correction
func (r *correctionRepo) Append(ctx context.Context, c *domain.Correction) (int64, error) {
	var id int64
	err := r.store.withRetry(ctx, func() error {
		var err error
		id, err = insertCorrection(ctx, r.store.db, c)
		return err
	})
	return id, err
}

// Recent returns the newest corrections for a language
func (r *correctionRepo) Recent(ctx context.Context, language string, limit int) ([]domain.Correction, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT id, user_id, user_name, incoming_message, ai_suggestion, your_edit, language,
			is_group, chat_title, created_at
		FROM message_corrections
		WHERE language = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, language, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query corrections: %w", err)
	}
	defer rows.Close()

	var out []domain.Correction
	for rows.Next() {
		var (
			c         domain.Correction
			isGroup   int
			createdAt int64
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.UserName, &c.IncomingMessage, &c.AISuggestion,
			&c.FinalEdit, &c.Language, &isGroup, &c.ChatTitle, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan correction: %w", err)
		}
		c.IsGroup = isGroup == 1
		c.CreatedAt = fromUnix(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ========== Audit ==========

// auditRepo records interactions and decisions
type auditRepo struct {
	store *Store
}

// NewAuditRepo creates a new audit repository
func NewAuditRepo(store *Store) repo.AuditRepo {
	return &auditRepo{store: store}
}

func insertInteraction(ctx context.Context, ex execer, i *domain.Interaction) error {
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now()
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO interactions (user_id, incoming_message, ai_suggestion, final_message,
			was_approved, was_edited, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, i.UserID, i.IncomingMessage, i.AISuggestion, i.FinalMessage,
		boolInt(i.WasApproved), boolInt(i.WasEdited), i.Confidence, i.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}
	return nil
}

// RecordDecision writes a decision audit row
func (r *auditRepo) RecordDecision(ctx context.Context, rec *domain.DecisionRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := r.store.exec(ctx, `
		INSERT INTO decision_log (message_id, chat_id, is_group, message_type, urgency, confidence,
			action, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.MessageID, rec.ChatID, boolInt(rec.IsGroup), string(rec.MessageType), string(rec.Urgency),
		rec.Confidence, string(rec.Action), rec.Reason, rec.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}
	return nil
}

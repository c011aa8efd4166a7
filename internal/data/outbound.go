package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
)

// outboundQueue implements the outbound job queue on SQLite
type outboundQueue struct {
	store *Store
}

// NewOutboundQueue creates a new outbound queue
func NewOutboundQueue(store *Store) repo.OutboundQueue {
	return &outboundQueue{store: store}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const jobColumns = `id, recipient_id, message, chat_id, topic_id, is_group, target_language,
	original_message, sender_identity, category, created_at, attempts, available_at`

func insertJob(ctx context.Context, ex execer, job *domain.OutboundJob, now time.Time) (int64, error) {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	res, err := ex.ExecContext(ctx, `
		INSERT INTO outbound_jobs (recipient_id, message, chat_id, topic_id, is_group, target_language,
			original_message, sender_identity, category, created_at, attempts, available_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		job.RecipientID, job.Text, job.ChatID, job.TopicID, boolInt(job.IsGroup), job.TargetLanguage,
		job.OriginalText, string(job.Sender), string(job.Category), job.CreatedAt.Unix(),
		job.Attempts, unix(job.AvailableAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert outbound job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read job id: %w", err)
	}
	job.ID = id
	return id, nil
}

// Enqueue appends a job
func (q *outboundQueue) Enqueue(ctx context.Context, job *domain.OutboundJob) (int64, error) {
	var id int64
	err := q.store.withRetry(ctx, func() error {
		var err error
		id, err = insertJob(ctx, q.store.db, job, time.Now())
		return err
	})
	return id, err
}

// DequeueOldest returns the oldest available job for the sender identity
func (q *outboundQueue) DequeueOldest(ctx context.Context, sender domain.Identity, now time.Time) (*domain.OutboundJob, error) {
	row := q.store.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM outbound_jobs
		WHERE sender_identity = ? AND available_at <= ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, string(sender), now.Unix())
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}
	return job, nil
}

// DequeueUnrouted returns the oldest available job whose sender identity is
// not in known
func (q *outboundQueue) DequeueUnrouted(ctx context.Context, known []domain.Identity, now time.Time) (*domain.OutboundJob, error) {
	where := "available_at <= ?"
	args := make([]interface{}, 0, len(known)+1)
	if len(known) > 0 {
		where = "sender_identity NOT IN (?" + strings.Repeat(", ?", len(known)-1) + ") AND " + where
		for _, id := range known {
			args = append(args, string(id))
		}
	}
	args = append(args, now.Unix())

	row := q.store.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM outbound_jobs
		WHERE `+where+`
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, args...)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue unrouted job: %w", err)
	}
	return job, nil
}

// Ack deletes a job
func (q *outboundQueue) Ack(ctx context.Context, id int64) error {
	if _, err := q.store.exec(ctx, `DELETE FROM outbound_jobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

// Reschedule records a failed attempt and hides the job until at
func (q *outboundQueue) Reschedule(ctx context.Context, id int64, attempts int, at time.Time) error {
	_, err := q.store.exec(ctx,
		`UPDATE outbound_jobs SET attempts = ?, available_at = ? WHERE id = ?`,
		attempts, at.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to reschedule job: %w", err)
	}
	return nil
}

// DeadLetter copies the job to outbound_dead_letters and deletes it
func (q *outboundQueue) DeadLetter(ctx context.Context, job *domain.OutboundJob, reason string) error {
	return q.store.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO outbound_dead_letters (job_id, sender_identity, category, recipient_id, chat_id,
				message, reason, attempts, failed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, job.ID, string(job.Sender), string(job.Category), job.RecipientID, job.ChatID,
			job.Text, reason, job.Attempts, time.Now().Unix())
		if err != nil {
			return fmt.Errorf("failed to insert dead letter: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM outbound_jobs WHERE id = ?`, job.ID); err != nil {
			return fmt.Errorf("failed to delete job: %w", err)
		}
		return nil
	})
}

// Depth returns the number of queued jobs for a sender identity
func (q *outboundQueue) Depth(ctx context.Context, sender domain.Identity) (int, error) {
	var n int
	err := q.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbound_jobs WHERE sender_identity = ?`, string(sender)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return n, nil
}

// DeadLetters returns the newest dead letters
func (q *outboundQueue) DeadLetters(ctx context.Context, limit int) ([]domain.DeadLetter, error) {
	rows, err := q.store.db.QueryContext(ctx, `
		SELECT job_id, sender_identity, category, recipient_id, chat_id, message, reason, attempts, failed_at
		FROM outbound_dead_letters
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query dead letters: %w", err)
	}
	defer rows.Close()

	var out []domain.DeadLetter
	for rows.Next() {
		var (
			dl               domain.DeadLetter
			sender, category string
			failedAt         int64
		)
		if err := rows.Scan(&dl.JobID, &sender, &category, &dl.Job.RecipientID, &dl.Job.ChatID,
			&dl.Job.Text, &dl.Reason, &dl.Job.Attempts, &failedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dead letter: %w", err)
		}
		dl.Job.ID = dl.JobID
		dl.Job.Sender = domain.Identity(sender)
		dl.Job.Category = domain.Category(category)
		dl.FailedAt = fromUnix(failedAt)
		out = append(out, dl)
	}
	return out, rows.Err()
}

func scanJob(row rowScanner) (*domain.OutboundJob, error) {
	var (
		job                    domain.OutboundJob
		isGroup                int
		sender, category       string
		createdAt, availableAt int64
	)
	err := row.Scan(&job.ID, &job.RecipientID, &job.Text, &job.ChatID, &job.TopicID, &isGroup,
		&job.TargetLanguage, &job.OriginalText, &sender, &category, &createdAt, &job.Attempts, &availableAt)
	if err != nil {
		return nil, err
	}
	job.IsGroup = isGroup == 1
	job.Sender = domain.Identity(sender)
	job.Category = domain.Category(category)
	job.CreatedAt = fromUnix(createdAt)
	job.AvailableAt = fromUnix(availableAt)
	return &job, nil
}

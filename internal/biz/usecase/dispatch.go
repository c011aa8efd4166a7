package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
)

// DispatchConfig contains dispatcher configuration
type DispatchConfig struct {
	// MaxAttempts is the number of sends tried per job. 1 means a failed job
	// is dropped (dead-lettered) without retry.
	MaxAttempts  int
	RetryBackoff time.Duration
	SendTimeout  time.Duration

	// ClaimUnrouted makes this dispatcher dead-letter jobs whose sender is
	// not a known identity once its own queue is empty. Exactly one
	// dispatcher should set it.
	ClaimUnrouted bool
}

// DefaultDispatchConfig returns default dispatch configuration
func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		MaxAttempts:  1,
		RetryBackoff: 30 * time.Second,
		SendTimeout:  30 * time.Second,
	}
}

// DispatchResult describes what happened to a dequeued job
type DispatchResult string

const (
	DispatchEmpty     DispatchResult = "empty"
	DispatchSent      DispatchResult = "sent"
	DispatchRefused   DispatchResult = "refused"
	DispatchRetry     DispatchResult = "retry"
	DispatchAbandoned DispatchResult = "abandoned"
)

// DispatchUsecase drains the outbound queue for one sending identity
type DispatchUsecase struct {
	queue       repo.OutboundQueue
	sender      repo.ChatRepo
	markers     repo.MarkerRepo
	policy      domain.RoutingPolicy
	broadcaster *BroadcastUsecase
	config      DispatchConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewDispatchUsecase creates a dispatcher for sender's identity.
// broadcaster may be nil; when set, group responses sent by the human
// identity are fanned out as translations too.
func NewDispatchUsecase(
	queue repo.OutboundQueue,
	sender repo.ChatRepo,
	markers repo.MarkerRepo,
	policy domain.RoutingPolicy,
	broadcaster *BroadcastUsecase,
	config DispatchConfig,
	logger *zap.Logger,
) *DispatchUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &DispatchUsecase{
		queue:       queue,
		sender:      sender,
		markers:     markers,
		policy:      policy,
		broadcaster: broadcaster,
		config:      config,
		logger:      logger.With(zap.String("identity", string(sender.Identity()))),
		now:         time.Now,
	}
}

// Identity returns the identity this dispatcher sends as
func (uc *DispatchUsecase) Identity() domain.Identity {
	return uc.sender.Identity()
}

// DispatchNext sends the oldest available job. The error is non-nil only
// when the queue itself failed.
func (uc *DispatchUsecase) DispatchNext(ctx context.Context) (DispatchResult, error) {
	identity := uc.sender.Identity()
	job, err := uc.queue.DequeueOldest(ctx, identity, uc.now())
	if err != nil {
		return DispatchEmpty, fmt.Errorf("dequeue: %w", err)
	}
	if job == nil && uc.config.ClaimUnrouted {
		job, err = uc.queue.DequeueUnrouted(ctx, domain.Identities, uc.now())
		if err != nil {
			return DispatchEmpty, fmt.Errorf("dequeue unrouted: %w", err)
		}
	}
	if job == nil {
		return DispatchEmpty, nil
	}

	// Refuse, never reroute: a mismatched job would echo back as input
	if err := uc.checkRoute(job); err != nil {
		return uc.refuse(ctx, job, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, uc.sendTimeout())
	msgID, err := uc.sender.SendText(sendCtx, repo.TargetOf(job), job.Text)
	cancel()
	if err != nil {
		return uc.fail(ctx, job, err)
	}

	// The marker must exist before the listener can see the broadcast
	if job.Category == domain.CategoryTranslation {
		if err := uc.mark(ctx, job, msgID); err != nil {
			uc.logger.Error("failed to record translation marker",
				zap.Int64("job_id", job.ID), zap.String("message_id", msgID), zap.Error(err))
		}
	}

	if err := uc.queue.Ack(ctx, job.ID); err != nil {
		return DispatchSent, fmt.Errorf("ack job %d: %w", job.ID, err)
	}
	uc.logger.Info("job sent",
		zap.Int64("job_id", job.ID),
		zap.String("category", string(job.Category)),
		zap.String("target", job.Target()),
		zap.String("message_id", msgID))

	if job.Category == domain.CategoryResponse && job.IsGroup && uc.broadcaster != nil {
		n, err := uc.broadcaster.Broadcast(ctx, BroadcastRequest{
			Text:           job.Text,
			SourceLanguage: job.TargetLanguage,
			ChatID:         job.ChatID,
			TopicID:        job.TopicID,
		})
		if err != nil {
			uc.logger.Warn("reply broadcast incomplete", zap.Int64("job_id", job.ID), zap.Error(err))
		} else if n > 0 {
			uc.logger.Info("reply broadcast queued", zap.Int64("job_id", job.ID), zap.Int("jobs", n))
		}
	}
	return DispatchSent, nil
}

func (uc *DispatchUsecase) checkRoute(job *domain.OutboundJob) error {
	if err := uc.policy.Check(job); err != nil {
		return err
	}
	if job.Sender != uc.sender.Identity() {
		return fmt.Errorf("%w: job for %s dequeued by %s dispatcher",
			domain.ErrRouteViolation, job.Sender, uc.sender.Identity())
	}
	return nil
}

func (uc *DispatchUsecase) refuse(ctx context.Context, job *domain.OutboundJob, reason error) (DispatchResult, error) {
	uc.logger.Error("refusing outbound job",
		zap.Int64("job_id", job.ID),
		zap.String("category", string(job.Category)),
		zap.String("sender", string(job.Sender)),
		zap.Error(reason))
	if err := uc.queue.DeadLetter(ctx, job, reason.Error()); err != nil {
		return DispatchRefused, fmt.Errorf("dead-letter job %d: %w", job.ID, err)
	}
	return DispatchRefused, nil
}

// fail reschedules the job while attempts remain and dead-letters it otherwise.
// Later jobs are never blocked.
func (uc *DispatchUsecase) fail(ctx context.Context, job *domain.OutboundJob, sendErr error) (DispatchResult, error) {
	attempts := job.Attempts + 1
	if attempts < uc.config.MaxAttempts {
		at := uc.now().Add(uc.config.RetryBackoff * time.Duration(attempts))
		uc.logger.Warn("send failed, will retry",
			zap.Int64("job_id", job.ID), zap.Int("attempt", attempts), zap.Time("retry_at", at), zap.Error(sendErr))
		if err := uc.queue.Reschedule(ctx, job.ID, attempts, at); err != nil {
			return DispatchRetry, fmt.Errorf("reschedule job %d: %w", job.ID, err)
		}
		return DispatchRetry, nil
	}

	uc.logger.Error("send failed, dropping job",
		zap.Int64("job_id", job.ID), zap.Int("attempts", attempts), zap.Error(sendErr))
	job.Attempts = attempts
	if err := uc.queue.DeadLetter(ctx, job, sendErr.Error()); err != nil {
		return DispatchAbandoned, fmt.Errorf("dead-letter job %d: %w", job.ID, err)
	}
	return DispatchAbandoned, nil
}

func (uc *DispatchUsecase) mark(ctx context.Context, job *domain.OutboundJob, msgID string) error {
	if msgID == "" {
		return errors.New("platform returned no message id")
	}
	return uc.markers.Mark(ctx, &domain.TranslationMarker{
		MessageID:    msgID,
		ChatID:       job.ChatID,
		TopicID:      job.TopicID,
		OriginalText: job.OriginalText,
		Language:     job.TargetLanguage,
		SentAt:       uc.now(),
	})
}

func (uc *DispatchUsecase) sendTimeout() time.Duration {
	if uc.config.SendTimeout <= 0 {
		return 30 * time.Second
	}
	return uc.config.SendTimeout
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
)

// BroadcastConfig contains translation broadcast configuration
type BroadcastConfig struct {
	Enabled   bool
	Languages []string // target language codes for groups
}

// BroadcastRequest is one group message to fan out
type BroadcastRequest struct {
	Text           string
	SourceLanguage string // code, or SourceAuto
	ChatID         string
	TopicID        string
	Hint           string
}

// BroadcastUsecase is the translation side pipeline: every accepted group
// message is translated into each configured language and queued for the
// broadcast identity
type BroadcastUsecase struct {
	translation *TranslationUsecase
	queue       repo.OutboundQueue
	config      BroadcastConfig
	logger      *zap.Logger
}

// NewBroadcastUsecase creates a new broadcast usecase
func NewBroadcastUsecase(
	translation *TranslationUsecase,
	queue repo.OutboundQueue,
	config BroadcastConfig,
	logger *zap.Logger,
) *BroadcastUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BroadcastUsecase{translation: translation, queue: queue, config: config, logger: logger}
}

// Targets returns the configured languages other than source
func (uc *BroadcastUsecase) Targets(source string) []string {
	var out []string
	for _, code := range uc.config.Languages {
		if !strings.EqualFold(code, source) {
			out = append(out, strings.ToLower(code))
		}
	}
	return out
}

// Broadcast translates the text into every target language in parallel and
// enqueues one translation job per successful translation. It returns the
// number of jobs enqueued. Failed translations are not broadcast.
func (uc *BroadcastUsecase) Broadcast(ctx context.Context, req BroadcastRequest) (int, error) {
	if !uc.config.Enabled || strings.TrimSpace(req.Text) == "" || req.ChatID == "" {
		return 0, nil
	}
	source := req.SourceLanguage
	if source == "" {
		source = SourceAuto
	}

	targets := uc.Targets(source)
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		queued int
		errs   []error
	)
	for _, target := range targets {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()

			res := uc.translation.Translate(ctx, req.Text, target, source, req.Hint)
			if res.Failed {
				uc.logger.Warn("skipping broadcast, translation failed",
					zap.String("chat_id", req.ChatID),
					zap.String("target", target),
					zap.String("error", res.Error))
				return
			}
			// Detected source equals target: nothing to translate
			if res.Source == res.Target {
				return
			}

			lang, _ := domain.LookupLanguage(target)
			job := &domain.OutboundJob{
				RecipientID:    req.ChatID,
				Text:           domain.FormatBroadcast(lang, res.Text),
				ChatID:         req.ChatID,
				TopicID:        req.TopicID,
				IsGroup:        true,
				TargetLanguage: target,
				OriginalText:   req.Text,
				Sender:         domain.IdentityBroadcast,
				Category:       domain.CategoryTranslation,
			}
			id, err := uc.queue.Enqueue(ctx, job)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("enqueue %s translation: %w", target, err))
				return
			}
			queued++
			uc.logger.Debug("translation queued",
				zap.Int64("job_id", id),
				zap.String("chat_id", req.ChatID),
				zap.String("target", target))
		}(target)
	}
	wg.Wait()

	return queued, errors.Join(errs...)
}

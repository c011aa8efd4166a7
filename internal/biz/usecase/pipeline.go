package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
)

// PipelineConfig contains pipeline configuration
type PipelineConfig struct {
	DashboardURL    string
	CorrectionLimit int
}

// Outcome is the result of processing one inbound message
type Outcome struct {
	Classification domain.Classification
	Context        *domain.ResolvedContext
	Draft          domain.ReplyDraft
	Decision       domain.Decision
	Token          string // set for queue_approval and escalate
	JobID          int64  // set for auto_send
}

// PipelineUsecase runs classify, resolve, draft, decide and act for one
// inbound message
type PipelineUsecase struct {
	translation *TranslationUsecase
	languages   *LanguageUsecase
	contexts    *ContextBuilderUsecase
	classifier  *ClassifierUsecase
	resolver    *ResolverUsecase
	replies     *ReplyUsecase
	decider     Decider
	approvals   *ApprovalUsecase
	corrections repo.CorrectionRepo
	queue       repo.OutboundQueue
	notifier    repo.Notifier
	audit       repo.AuditRepo
	config      PipelineConfig
	logger      *zap.Logger
}

// PipelineDeps groups the pipeline collaborators
type PipelineDeps struct {
	Translation *TranslationUsecase
	Languages   *LanguageUsecase
	Contexts    *ContextBuilderUsecase
	Classifier  *ClassifierUsecase
	Resolver    *ResolverUsecase
	Replies     *ReplyUsecase
	Decider     Decider
	Approvals   *ApprovalUsecase
	Corrections repo.CorrectionRepo
	Queue       repo.OutboundQueue
	Notifier    repo.Notifier
	Audit       repo.AuditRepo
}

// NewPipelineUsecase creates a new pipeline
func NewPipelineUsecase(deps PipelineDeps, config PipelineConfig, logger *zap.Logger) *PipelineUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CorrectionLimit <= 0 {
		config.CorrectionLimit = 5
	}
	return &PipelineUsecase{
		translation: deps.Translation,
		languages:   deps.Languages,
		contexts:    deps.Contexts,
		classifier:  deps.Classifier,
		resolver:    deps.Resolver,
		replies:     deps.Replies,
		decider:     deps.Decider,
		approvals:   deps.Approvals,
		corrections: deps.Corrections,
		queue:       deps.Queue,
		notifier:    deps.Notifier,
		audit:       deps.Audit,
		config:      config,
		logger:      logger,
	}
}

// Process handles one inbound message to a terminal decision. External call
// failures degrade into fallbacks; the returned error reports only storage
// failures while acting on the decision.
func (uc *PipelineUsecase) Process(ctx context.Context, msg domain.Message) (*Outcome, error) {
	if msg.IsEmpty() {
		return &Outcome{Decision: domain.Skip("empty message")}, nil
	}
	if msg.SourceLanguage.Code == "" {
		msg = msg.WithLanguage(uc.translation.Detect(ctx, msg.Text).Language)
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}
	log := uc.logger.With(zap.String("message_id", msg.ID), zap.String("chat_id", msg.ChatID))

	var history []domain.HistoryEntry
	if msg.IsGroup() {
		if err := uc.contexts.Record(ctx, &msg); err != nil {
			log.Warn("failed to record group message", zap.Error(err))
		}
		conv, err := uc.contexts.BuildConversation(ctx, &msg)
		if err != nil {
			log.Warn("failed to load group context", zap.Error(err))
		} else {
			history = conv.Recent
		}
	}

	operatorLang := uc.languages.OperatorLanguage(ctx)
	text := msg.Text
	if msg.SourceLanguage.Code != operatorLang.Code {
		text = uc.translation.Translate(ctx, msg.Text, operatorLang.Code, msg.SourceLanguage.Code, "").Text
	}

	out := &Outcome{}
	out.Classification = uc.classifier.Classify(ctx, msg, text, history)
	c := out.Classification

	if msg.IsGroup() && !c.ShouldRespond {
		out.Decision = domain.Skip("Not responding: " + c.ResponseReason)
		uc.record(ctx, &msg, out)
		log.Info("group message skipped", zap.String("reason", c.ResponseReason))
		return out, nil
	}

	out.Context = uc.resolver.Resolve(ctx, c.Entities)

	corrections, err := uc.corrections.Recent(ctx, msg.SourceLanguage.Code, uc.config.CorrectionLimit)
	if err != nil {
		log.Warn("failed to load corrections", zap.Error(err))
	}

	out.Draft = uc.replies.Generate(ctx, repo.ReplyRequest{
		Message:        msg,
		Classification: c,
		Context:        out.Context,
		Corrections:    corrections,
		TargetLanguage: msg.SourceLanguage,
	})

	out.Decision = uc.decider.Decide(c, out.Draft)
	uc.record(ctx, &msg, out)
	log.Info("decision",
		zap.String("type", string(c.MessageType)),
		zap.Int("confidence", out.Draft.Confidence),
		zap.String("action", string(out.Decision.Action)),
		zap.String("reason", out.Decision.Reason))

	if err := uc.act(ctx, &msg, text, out); err != nil {
		return out, err
	}
	return out, nil
}

func (uc *PipelineUsecase) act(ctx context.Context, msg *domain.Message, translated string, out *Outcome) error {
	switch out.Decision.Action {
	case domain.ActionAutoSend:
		job := &domain.OutboundJob{
			RecipientID:    msg.ReplyTarget(),
			Text:           out.Draft.Text,
			ChatID:         msg.ChatID,
			TopicID:        msg.TopicID,
			IsGroup:        msg.IsGroup(),
			TargetLanguage: msg.SourceLanguage.Code,
			OriginalText:   msg.Text,
			Sender:         domain.IdentityHuman,
			Category:       domain.CategoryResponse,
		}
		id, err := uc.queue.Enqueue(ctx, job)
		if err != nil {
			return fmt.Errorf("enqueue auto reply: %w", err)
		}
		out.JobID = id

	case domain.ActionQueueApproval, domain.ActionEscalate:
		a := &domain.PendingApproval{
			SenderID:          msg.SenderID,
			SenderName:        msg.SenderName,
			IncomingMessage:   msg.Text,
			Suggestion:        out.Draft.Text,
			Language:          out.Draft.Language,
			MessageType:       out.Classification.MessageType,
			Urgency:           out.Classification.Urgency,
			Confidence:        out.Draft.Confidence,
			Action:            out.Decision.Action,
			Reason:            out.Decision.Reason,
			EscalateTo:        out.Decision.EscalateTo,
			IsGroup:           msg.IsGroup(),
			ChatID:            msg.ChatID,
			ChatTitle:         msg.ChatTitle,
			TopicID:           msg.TopicID,
			TopicName:         msg.TopicName,
			SourceLanguage:    msg.SourceLanguage.Code,
			TranslatedMessage: translated,
			OriginalMessage:   msg.Text,
		}
		token, err := uc.approvals.Create(ctx, a)
		if err != nil {
			return err
		}
		out.Token = token

		if uc.notifier != nil {
			note := RenderNotification(msg, out.Classification, out.Draft, out.Decision, token, uc.config.DashboardURL)
			if err := uc.notifier.Notify(ctx, note); err != nil {
				uc.logger.Warn("failed to notify reviewer", zap.String("token", token), zap.Error(err))
			}
		}
	}
	return nil
}

func (uc *PipelineUsecase) record(ctx context.Context, msg *domain.Message, out *Outcome) {
	if uc.audit == nil {
		return
	}
	err := uc.audit.RecordDecision(ctx, &domain.DecisionRecord{
		MessageID:   msg.ID,
		ChatID:      msg.ChatID,
		IsGroup:     msg.IsGroup(),
		MessageType: out.Classification.MessageType,
		Urgency:     out.Classification.Urgency,
		Confidence:  out.Draft.Confidence,
		Action:      out.Decision.Action,
		Reason:      out.Decision.Reason,
		CreatedAt:   msg.ReceivedAt,
	})
	if err != nil {
		uc.logger.Warn("failed to record decision", zap.Error(err))
	}
}

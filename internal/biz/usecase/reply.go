package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
)

// Confidence ceilings applied to drafted replies
const (
	CeilingNoProject        = 70
	CeilingFactualNoContext = 50
	CeilingSchedulingNoDate = 60
	CeilingHumanJudgment    = 75
)

// ReplyUsecase drafts replies and enforces confidence ceilings
type ReplyUsecase struct {
	replyRepo repo.ReplyRepo
	timeout   time.Duration
	logger    *zap.Logger
}

// NewReplyUsecase creates a new reply usecase
func NewReplyUsecase(replyRepo repo.ReplyRepo, timeout time.Duration, logger *zap.Logger) *ReplyUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ReplyUsecase{replyRepo: replyRepo, timeout: timeout, logger: logger}
}

// Generate drafts a reply. It never fails: on error the safe fallback draft
// is returned. The returned confidence never exceeds ConfidenceCeiling.
func (uc *ReplyUsecase) Generate(ctx context.Context, req repo.ReplyRequest) domain.ReplyDraft {
	lang := req.TargetLanguage.Code
	if lang == "" {
		lang = domain.English.Code
		req.TargetLanguage = domain.English
	}

	callCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	draft, err := uc.replyRepo.Draft(callCtx, req)
	if err == nil && (draft == nil || draft.Text == "") {
		err = errors.New("empty reply")
	}
	if err != nil {
		uc.logger.Warn("reply generation failed, using fallback",
			zap.String("message_id", req.Message.ID), zap.Error(err))
		return domain.FallbackReply(lang, err.Error())
	}

	draft.Language = lang
	draft.SuggestedAction = domain.ParseAction(string(draft.SuggestedAction))
	draft.Confidence = ApplyCeiling(draft.Confidence, req.Classification.MessageType, req.Context)
	return *draft
}

// ConfidenceCeiling returns the highest confidence a draft may report for
// the message type given what context was resolved
func ConfidenceCeiling(t domain.MessageType, rc *domain.ResolvedContext) int {
	ceiling := 100
	if !rc.HasProject() {
		ceiling = min(ceiling, CeilingNoProject)
	}
	if t == domain.TypeFactualQuestion && rc.IsEmpty() {
		ceiling = min(ceiling, CeilingFactualNoContext)
	}
	if t == domain.TypeScheduling && !rc.HasSchedule() {
		ceiling = min(ceiling, CeilingSchedulingNoDate)
	}
	if t == domain.TypeDecisionRequired || t == domain.TypeCustomerComplaint {
		ceiling = min(ceiling, CeilingHumanJudgment)
	}
	return ceiling
}

// ApplyCeiling clamps confidence to 0..ceiling
func ApplyCeiling(confidence int, t domain.MessageType, rc *domain.ResolvedContext) int {
	return min(domain.ClampConfidence(confidence), ConfidenceCeiling(t, rc))
}

package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaydesk/relay/internal/biz/domain"
)

type pipelineFixture struct {
	pipeline    *PipelineUsecase
	classifier  *mockClassifier
	replies     *mockReplyRepo
	translator  *mockTranslator
	queue       *memQueue
	approvals   *memApprovals
	corrections *memCorrections
	history     *memHistory
	notifier    *mockNotifier
	audit       *memAudit
}

func newPipelineFixture(decision DecisionConfig) *pipelineFixture {
	f := &pipelineFixture{
		classifier:  &mockClassifier{},
		replies:     &mockReplyRepo{},
		translator:  &mockTranslator{},
		queue:       newMemQueue(),
		corrections: &memCorrections{},
		history:     &memHistory{},
		notifier:    &mockNotifier{},
		audit:       &memAudit{},
	}
	f.approvals = newMemApprovals(f.queue, f.corrections)

	translation, _ := newTestTranslation(f.translator)
	f.pipeline = NewPipelineUsecase(PipelineDeps{
		Translation: translation,
		Languages:   NewLanguageUsecase(newMemLanguages(), "ou_op", "en", nil),
		Contexts:    NewContextBuilderUsecase(f.history),
		Classifier:  NewClassifierUsecase(f.classifier, ClassifierConfig{BotName: "Marta"}, nil),
		Resolver:    NewResolverUsecase(&memDirectory{dir: testDirectory()}, nil),
		Replies:     NewReplyUsecase(f.replies, 0, nil),
		Decider:     NewDecisionEngine(decision),
		Approvals:   NewApprovalUsecase(f.approvals, translation, nil),
		Corrections: f.corrections,
		Queue:       f.queue,
		Notifier:    f.notifier,
		Audit:       f.audit,
	}, PipelineConfig{DashboardURL: "http://review.local/"}, nil)
	return f
}

func TestPipelineDirectMessageQueuesApproval(t *testing.T) {
	f := newPipelineFixture(DefaultDecisionConfig())
	f.translator.detect = domain.Language{Code: "de", Name: "German"}
	f.classifier.direct = &domain.Classification{
		MessageType: domain.TypeScheduling,
		Urgency:     domain.UrgencyMedium,
		Confidence:  88,
		Entities:    domain.Entities{CustomerName: ptr("Mueller"), Date: ptr("2024-05-02")},
	}
	f.replies.draft = &domain.ReplyDraft{Text: "Piotr kommt um 9 Uhr.", Confidence: 92}

	out, err := f.pipeline.Process(context.Background(), domain.Message{
		ID: "om_1", Text: "Wann kommt Piotr morgen?", SenderID: "ou_anna", SenderName: "Anna",
		Origin: domain.OriginDirect,
	})
	require.NoError(t, err)

	// The classifier saw the operator-language text
	require.Equal(t, "[en] Wann kommt Piotr morgen?", f.classifier.lastReq.Text)
	require.True(t, out.Context.HasProject())
	require.True(t, out.Context.HasSchedule())
	require.Equal(t, "de", f.replies.lastReq.TargetLanguage.Code)

	require.Equal(t, domain.ActionQueueApproval, out.Decision.Action)
	require.NotEmpty(t, out.Token)
	require.Empty(t, f.queue.snapshot())

	a, err := f.approvals.Get(context.Background(), out.Token)
	require.NoError(t, err)
	require.Equal(t, "Piotr kommt um 9 Uhr.", a.Suggestion)
	require.Equal(t, "de", a.Language)
	require.Equal(t, "ou_anna", a.Recipient())
	require.Equal(t, "[en] Wann kommt Piotr morgen?", a.TranslatedMessage)

	require.Len(t, f.notifier.notes, 1)
	require.True(t, containsAll(f.notifier.notes[0],
		"NEW DIRECT MESSAGE", "From: Anna", "Language: German",
		"http://review.local/api/approvals/"+out.Token))

	require.Len(t, f.audit.records, 1)
	require.Equal(t, domain.ActionQueueApproval, f.audit.records[0].Action)
}

func TestPipelineAutoSendWhenEnabled(t *testing.T) {
	f := newPipelineFixture(enabledDecisionConfig())
	f.classifier.direct = &domain.Classification{
		MessageType: domain.TypeStatusUpdate,
		Urgency:     domain.UrgencyLow,
		Confidence:  95,
		Entities:    domain.Entities{ProjectName: ptr("PRJ-001")},
	}
	f.replies.draft = &domain.ReplyDraft{Text: "Thanks for the update!", Confidence: 95}

	out, err := f.pipeline.Process(context.Background(), domain.Message{
		ID: "om_2", Text: "Tiles are done for today.", SenderID: "ou_piotr", Origin: domain.OriginDirect,
		SourceLanguage: domain.English,
	})
	require.NoError(t, err)
	require.Equal(t, domain.ActionAutoSend, out.Decision.Action)
	require.NotZero(t, out.JobID)

	jobs := f.queue.snapshot()
	require.Len(t, jobs, 1)
	require.Equal(t, "ou_piotr", jobs[0].Target())
	require.Equal(t, domain.IdentityHuman, jobs[0].Sender)
	require.Equal(t, domain.CategoryResponse, jobs[0].Category)
	require.Empty(t, f.notifier.notes)
	require.Zero(t, f.translator.translateCalls())
}

func TestPipelineGroupFactualWithoutContextIsCapped(t *testing.T) {
	f := newPipelineFixture(enabledDecisionConfig())
	f.classifier.group = &domain.Classification{
		MessageType:   domain.TypeFactualQuestion,
		Urgency:       domain.UrgencyMedium,
		Confidence:    95,
		ShouldRespond: true,
	}
	f.replies.draft = &domain.ReplyDraft{Text: "The glass panels arrive Thursday.", Confidence: 95}
	ctx := context.Background()

	out, err := f.pipeline.Process(ctx, domain.Message{
		ID: "om_glass", Text: "When do the glass panels arrive?", SenderID: "ou_piotr",
		Origin: domain.OriginGroup, ChatID: "oc_site", SourceLanguage: domain.English,
	})
	require.NoError(t, err)
	require.True(t, out.Context.IsEmpty())
	require.LessOrEqual(t, out.Draft.Confidence, CeilingFactualNoContext)
	require.LessOrEqual(t, out.Decision.Confidence, CeilingFactualNoContext)
	require.Equal(t, domain.ActionQueueApproval, out.Decision.Action)
	require.NotEmpty(t, out.Token)

	n, err := f.approvals.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	for _, job := range f.queue.snapshot() {
		require.NotEqual(t, domain.CategoryResponse, job.Category)
	}
}

func TestPipelineDirectAcknowledgmentWithProjectAutoSends(t *testing.T) {
	f := newPipelineFixture(enabledDecisionConfig())
	f.classifier.direct = &domain.Classification{
		MessageType: domain.TypeAcknowledgment,
		Urgency:     domain.UrgencyLow,
		Confidence:  92,
		Entities:    domain.Entities{CustomerName: ptr("Mueller")},
	}
	f.replies.draft = &domain.ReplyDraft{Text: "Thank you, see you tomorrow.", Confidence: 92}

	out, err := f.pipeline.Process(context.Background(), domain.Message{
		ID: "om_ack", Text: "Okay, thanks!", SenderID: "ou_anna", Origin: domain.OriginDirect,
		SourceLanguage: domain.English,
	})
	require.NoError(t, err)
	require.True(t, out.Context.HasProject())
	require.Equal(t, 92, out.Draft.Confidence)
	require.Equal(t, domain.ActionAutoSend, out.Decision.Action)
	require.Empty(t, out.Token)

	jobs := f.queue.snapshot()
	require.Len(t, jobs, 1)
	require.Equal(t, "ou_anna", jobs[0].Target())
	require.Equal(t, domain.CategoryResponse, jobs[0].Category)
}

func TestPipelineGroupNotAddressedIsSkipped(t *testing.T) {
	f := newPipelineFixture(enabledDecisionConfig())
	f.classifier.group = &domain.Classification{
		MessageType:    domain.TypeGroupDiscussion,
		Urgency:        domain.UrgencyLow,
		Confidence:     80,
		ShouldRespond:  false,
		ResponseReason: "Workers coordinating",
	}

	out, err := f.pipeline.Process(context.Background(), domain.Message{
		ID: "om_3", Text: "I'll bring the grout.", SenderID: "ou_piotr",
		Origin: domain.OriginGroup, ChatID: "oc_site", SourceLanguage: domain.English,
	})
	require.NoError(t, err)
	require.Equal(t, domain.ActionSkip, out.Decision.Action)
	require.Equal(t, "Not responding: Workers coordinating", out.Decision.Reason)
	require.Nil(t, out.Context)

	// Skipped messages still become group context
	require.Len(t, f.history.entries, 1)
	require.Empty(t, f.queue.snapshot())
	n, _ := f.approvals.Count(context.Background())
	require.Zero(t, n)
}

func TestPipelineGroupContextExcludesCurrentMessage(t *testing.T) {
	f := newPipelineFixture(DefaultDecisionConfig())
	f.classifier.group = &domain.Classification{
		MessageType: domain.TypeFollowUp, Urgency: domain.UrgencyLow, Confidence: 50, ShouldRespond: true,
	}
	f.replies.draft = &domain.ReplyDraft{Text: "Yes.", Confidence: 50}
	ctx := context.Background()

	base := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	for i, text := range []string{"Who has the van?", "Me.", "And tomorrow?"} {
		_, err := f.pipeline.Process(ctx, domain.Message{
			ID: "om_" + text, Text: text, SenderID: "ou_piotr", Origin: domain.OriginGroup,
			ChatID: "oc_site", SourceLanguage: domain.English, ReceivedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	history := f.classifier.lastReq.History
	require.Len(t, history, 2)
	require.Equal(t, "Who has the van?", history[0].Text)
	require.Equal(t, "Me.", history[1].Text)
}

func TestPipelineClassifierOutageStillReviewsDirect(t *testing.T) {
	f := newPipelineFixture(enabledDecisionConfig())
	f.classifier.err = errors.New("model unavailable")
	f.replies.err = errors.New("model unavailable")

	out, err := f.pipeline.Process(context.Background(), domain.Message{
		ID: "om_4", Text: "Hello?", SenderID: "ou_anna", Origin: domain.OriginDirect, SourceLanguage: domain.English,
	})
	require.NoError(t, err)
	require.True(t, out.Classification.Degraded)
	require.True(t, out.Draft.Degraded)
	require.Equal(t, domain.FallbackReplyText, out.Draft.Text)
	require.True(t, out.Decision.NeedsReview())
	require.NotEmpty(t, out.Token)
	require.Contains(t, f.notifier.notes[0], "manual review required")
}

func TestPipelineUsesCorrections(t *testing.T) {
	f := newPipelineFixture(DefaultDecisionConfig())
	f.classifier.direct = &domain.Classification{MessageType: domain.TypeGeneralChat, Urgency: domain.UrgencyLow, Confidence: 70}
	f.replies.draft = &domain.ReplyDraft{Text: "Hi!", Confidence: 70}
	ctx := context.Background()

	_, err := f.corrections.Append(ctx, &domain.Correction{AISuggestion: "Hello.", FinalEdit: "Hi!", Language: "en"})
	require.NoError(t, err)
	_, err = f.corrections.Append(ctx, &domain.Correction{AISuggestion: "Hallo.", FinalEdit: "Servus!", Language: "de"})
	require.NoError(t, err)

	_, err = f.pipeline.Process(ctx, domain.Message{
		ID: "om_5", Text: "Hey there", SenderID: "ou_anna", Origin: domain.OriginDirect, SourceLanguage: domain.English,
	})
	require.NoError(t, err)
	require.Len(t, f.replies.lastReq.Corrections, 1)
	require.Equal(t, "Hi!", f.replies.lastReq.Corrections[0].FinalEdit)
}

func TestPipelineEmptyMessage(t *testing.T) {
	f := newPipelineFixture(DefaultDecisionConfig())

	out, err := f.pipeline.Process(context.Background(), domain.Message{ID: "om_6", Text: "   "})
	require.NoError(t, err)
	require.Equal(t, domain.ActionSkip, out.Decision.Action)
	require.Zero(t, f.classifier.calls)
}

func TestPipelineStorageFailureIsReported(t *testing.T) {
	f := newPipelineFixture(enabledDecisionConfig())
	f.classifier.direct = &domain.Classification{
		MessageType: domain.TypeAcknowledgment, Urgency: domain.UrgencyLow, Confidence: 99,
		Entities: domain.Entities{ProjectName: ptr("PRJ-001")},
	}
	f.replies.draft = &domain.ReplyDraft{Text: "Great.", Confidence: 99}
	f.queue.err = errors.New("database is locked")

	_, err := f.pipeline.Process(context.Background(), domain.Message{
		ID: "om_7", Text: "Thanks!", SenderID: "ou_anna", Origin: domain.OriginDirect, SourceLanguage: domain.English,
	})
	require.Error(t, err)
}

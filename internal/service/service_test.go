package service

import (
	"context"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
	"github.com/relaydesk/relay/internal/biz/usecase"
	"github.com/relaydesk/relay/internal/data"
)

const operatorID = "ou_operator"

type fakeTranslator struct {
	lang domain.Language
}

func (f fakeTranslator) Detect(ctx context.Context, text string) (*domain.Detection, error) {
	return &domain.Detection{Language: f.lang, Confidence: 90}, nil
}

func (f fakeTranslator) Translate(ctx context.Context, text string, source, target domain.Language, hint string) (string, error) {
	return "[" + target.Code + "] " + text, nil
}

type fakeClassifier struct {
	shouldRespond bool
}

func (f fakeClassifier) ClassifyDirect(ctx context.Context, req repo.ClassifyRequest) (*domain.Classification, error) {
	return &domain.Classification{MessageType: domain.TypeScheduling, Urgency: domain.UrgencyMedium, Confidence: 80}, nil
}

func (f fakeClassifier) ClassifyGroup(ctx context.Context, req repo.ClassifyRequest) (*domain.Classification, error) {
	return &domain.Classification{
		MessageType:    domain.TypeGroupDiscussion,
		Urgency:        domain.UrgencyLow,
		Confidence:     70,
		ShouldRespond:  f.shouldRespond,
		ResponseReason: "test",
	}, nil
}

type fakeReplies struct{}

func (fakeReplies) Draft(ctx context.Context, req repo.ReplyRequest) (*domain.ReplyDraft, error) {
	return &domain.ReplyDraft{Text: "Morgen um 9 Uhr.", Confidence: 65}, nil
}

type fakeChat struct {
	identity domain.Identity
	mu       sync.Mutex
	sent     []string
	n        int
}

func (f *fakeChat) Identity() domain.Identity {
	return f.identity
}

func (f *fakeChat) SendText(ctx context.Context, target repo.SendTarget, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	f.sent = append(f.sent, text)
	return "om_" + string(f.identity) + "_" + strconv.Itoa(f.n), nil
}

func (f *fakeChat) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.sent...)
}

type testEnv struct {
	repos       *data.Repositories
	translation *usecase.TranslationUsecase
	approvals   *usecase.ApprovalUsecase
	listener    *Listener
}

func newTestEnv(t *testing.T, lang domain.Language, shouldRespond bool) *testEnv {
	t.Helper()

	store, err := data.OpenStore(context.Background(), data.StoreConfig{
		Path:        filepath.Join(t.TempDir(), "relay.db"),
		LockRetries: 5,
		LockBackoff: 10 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	repos := data.NewRepositories(store)
	translation := usecase.NewTranslationUsecase(fakeTranslator{lang: lang}, repos.Cache, usecase.DefaultTranslationConfig(), nil)
	approvals := usecase.NewApprovalUsecase(repos.Approvals, translation, nil)
	languages := usecase.NewLanguageUsecase(repos.Languages, operatorID, "en", nil)
	broadcast := usecase.NewBroadcastUsecase(translation, repos.Queue, usecase.BroadcastConfig{
		Enabled:   true,
		Languages: []string{"en", "de", "pl"},
	}, nil)

	pipeline := usecase.NewPipelineUsecase(usecase.PipelineDeps{
		Translation: translation,
		Languages:   languages,
		Contexts:    usecase.NewContextBuilderUsecase(repos.History),
		Classifier:  usecase.NewClassifierUsecase(fakeClassifier{shouldRespond: shouldRespond}, usecase.ClassifierConfig{}, nil),
		Resolver:    usecase.NewResolverUsecase(data.NewSQLiteDirectory(store), nil),
		Replies:     usecase.NewReplyUsecase(fakeReplies{}, 0, nil),
		Decider:     usecase.NewDecisionEngine(usecase.DefaultDecisionConfig()),
		Approvals:   approvals,
		Corrections: repos.Corrections,
		Queue:       repos.Queue,
		Audit:       repos.Audit,
	}, usecase.PipelineConfig{DashboardURL: "http://localhost:5000"}, nil)

	listener := NewListener(ListenerDeps{
		Echo:        usecase.NewEchoFilter(repos.Markers, usecase.EchoConfig{BroadcastSenderID: "ou_broadcast", Wait: time.Millisecond}, nil),
		Commands:    usecase.NewCommandUsecase(languages, approvals, repos.Queue, operatorID),
		Translation: translation,
		Pipeline:    pipeline,
		Broadcast:   broadcast,
	}, operatorID, 8, nil)

	return &testEnv{repos: repos, translation: translation, approvals: approvals, listener: listener}
}

func (e *testEnv) depth(t *testing.T, id domain.Identity) int {
	t.Helper()
	n, err := e.repos.Queue.Depth(context.Background(), id)
	require.NoError(t, err)
	return n
}

func (e *testEnv) pending(t *testing.T) int {
	t.Helper()
	n, err := e.approvals.Count(context.Background())
	require.NoError(t, err)
	return n
}

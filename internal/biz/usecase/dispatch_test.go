package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaydesk/relay/internal/biz/domain"
)

type dispatchFixture struct {
	queue     *memQueue
	markers   *memMarkers
	human     *mockChat
	broadcast *mockChat
}

func newDispatchFixture() *dispatchFixture {
	return &dispatchFixture{
		queue:     newMemQueue(),
		markers:   newMemMarkers(),
		human:     &mockChat{identity: domain.IdentityHuman},
		broadcast: &mockChat{identity: domain.IdentityBroadcast},
	}
}

func (f *dispatchFixture) dispatcher(sender *mockChat, broadcaster *BroadcastUsecase, config DispatchConfig) *DispatchUsecase {
	return NewDispatchUsecase(f.queue, sender, f.markers, domain.DefaultRoutingPolicy(), broadcaster, config, nil)
}

func (f *dispatchFixture) enqueue(t *testing.T, job domain.OutboundJob) int64 {
	t.Helper()
	id, err := f.queue.Enqueue(context.Background(), &job)
	require.NoError(t, err)
	return id
}

func TestDispatchSendsAsOwnIdentity(t *testing.T) {
	f := newDispatchFixture()
	human := f.dispatcher(f.human, nil, DefaultDispatchConfig())
	ctx := context.Background()

	f.enqueue(t, domain.OutboundJob{
		RecipientID: "ou_anna", Text: "See you at 9.",
		Sender: domain.IdentityHuman, Category: domain.CategoryResponse,
	})
	f.enqueue(t, domain.OutboundJob{
		RecipientID: "oc_site", ChatID: "oc_site", IsGroup: true, Text: "German:\nBis morgen.",
		Sender: domain.IdentityBroadcast, Category: domain.CategoryTranslation,
	})

	res, err := human.DispatchNext(ctx)
	require.NoError(t, err)
	require.Equal(t, DispatchSent, res)

	// The translation job belongs to the broadcast identity
	res, err = human.DispatchNext(ctx)
	require.NoError(t, err)
	require.Equal(t, DispatchEmpty, res)

	require.Equal(t, []string{"See you at 9."}, f.human.sentTexts())
	require.Equal(t, "ou_anna", f.human.sent[0].Target.ReceiveID)
	require.False(t, f.human.sent[0].Target.IsGroup)
}

func TestDispatchRefusesMisroutedJobs(t *testing.T) {
	tests := []struct {
		name string
		job  domain.OutboundJob
	}{
		{
			name: "response as broadcast",
			job:  domain.OutboundJob{RecipientID: "oc_site", Text: "hi", Sender: domain.IdentityBroadcast, Category: domain.CategoryResponse},
		},
		{
			name: "notification as broadcast",
			job:  domain.OutboundJob{RecipientID: "ou_op", Text: "hi", Sender: domain.IdentityBroadcast, Category: domain.CategoryNotification},
		},
		{
			name: "unknown category",
			job:  domain.OutboundJob{RecipientID: "oc_site", Text: "hi", Sender: domain.IdentityBroadcast, Category: "promo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatchFixture()
			d := f.dispatcher(f.broadcast, nil, DefaultDispatchConfig())
			id := f.enqueue(t, tt.job)

			res, err := d.DispatchNext(context.Background())
			require.NoError(t, err)
			require.Equal(t, DispatchRefused, res)
			require.Empty(t, f.broadcast.sentTexts())

			dead := f.queue.deadLetters()
			require.Len(t, dead, 1)
			require.Equal(t, id, dead[0].JobID)
			require.Contains(t, dead[0].Reason, domain.ErrRouteViolation.Error())
		})
	}
}

// Every job sent by either dispatcher matches the routing policy
func TestDispatchNeverSendsAgainstPolicy(t *testing.T) {
	f := newDispatchFixture()
	ctx := context.Background()
	human := f.dispatcher(f.human, nil, DefaultDispatchConfig())
	broadcast := f.dispatcher(f.broadcast, nil, DefaultDispatchConfig())

	categories := []domain.Category{domain.CategoryResponse, domain.CategoryTranslation, domain.CategoryNotification}
	for _, c := range categories {
		for _, id := range domain.Identities {
			f.enqueue(t, domain.OutboundJob{
				RecipientID: "oc_site", ChatID: "oc_site", IsGroup: true,
				Text:   string(c) + "/" + string(id),
				Sender: id, Category: c,
			})
		}
	}

	for i := 0; i < 20; i++ {
		_, err := human.DispatchNext(ctx)
		require.NoError(t, err)
		_, err = broadcast.DispatchNext(ctx)
		require.NoError(t, err)
	}

	require.ElementsMatch(t, []string{"response/human", "notification/human"}, f.human.sentTexts())
	require.ElementsMatch(t, []string{"translation/broadcast"}, f.broadcast.sentTexts())
	require.Len(t, f.queue.deadLetters(), 3)
	require.Empty(t, f.queue.snapshot())
}

func TestDispatchMarksTranslations(t *testing.T) {
	f := newDispatchFixture()
	d := f.dispatcher(f.broadcast, nil, DefaultDispatchConfig())
	ctx := context.Background()

	f.enqueue(t, domain.OutboundJob{
		RecipientID: "oc_site", ChatID: "oc_site", TopicID: "om_root", IsGroup: true,
		Text: "Polish:\nJutro o 9.", TargetLanguage: "pl", OriginalText: "Tomorrow at 9.",
		Sender: domain.IdentityBroadcast, Category: domain.CategoryTranslation,
	})

	res, err := d.DispatchNext(ctx)
	require.NoError(t, err)
	require.Equal(t, DispatchSent, res)

	marked, err := f.markers.IsMarked(ctx, "om_broadcast_1")
	require.NoError(t, err)
	require.True(t, marked)

	m := f.markers.markers["om_broadcast_1"]
	require.Equal(t, "oc_site", m.ChatID)
	require.Equal(t, "om_root", m.TopicID)
	require.Equal(t, "pl", m.Language)
	require.Equal(t, "Tomorrow at 9.", m.OriginalText)
	require.Equal(t, "om_root", f.broadcast.sent[0].Target.TopicID)
}

func TestDispatchRetryThenAbandon(t *testing.T) {
	f := newDispatchFixture()
	f.human.err = errors.New("rate limited")
	now := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)

	d := f.dispatcher(f.human, nil, DispatchConfig{MaxAttempts: 2, RetryBackoff: time.Minute})
	d.now = func() time.Time { return now }
	ctx := context.Background()

	first := f.enqueue(t, domain.OutboundJob{RecipientID: "ou_anna", Text: "first", Sender: domain.IdentityHuman, Category: domain.CategoryResponse})
	res, err := d.DispatchNext(ctx)
	require.NoError(t, err)
	require.Equal(t, DispatchRetry, res)

	// A delayed job does not block later ones
	f.human.err = nil
	f.enqueue(t, domain.OutboundJob{RecipientID: "ou_anna", Text: "second", Sender: domain.IdentityHuman, Category: domain.CategoryResponse})
	res, err = d.DispatchNext(ctx)
	require.NoError(t, err)
	require.Equal(t, DispatchSent, res)
	require.Equal(t, []string{"second"}, f.human.sentTexts())

	res, err = d.DispatchNext(ctx)
	require.NoError(t, err)
	require.Equal(t, DispatchEmpty, res)

	now = now.Add(2 * time.Minute)
	f.human.err = errors.New("still rate limited")
	res, err = d.DispatchNext(ctx)
	require.NoError(t, err)
	require.Equal(t, DispatchAbandoned, res)

	dead := f.queue.deadLetters()
	require.Len(t, dead, 1)
	require.Equal(t, first, dead[0].JobID)
	require.Equal(t, 2, dead[0].Job.Attempts)
	require.Empty(t, f.queue.snapshot())
}

func TestDispatchDefaultDropsFailedJob(t *testing.T) {
	f := newDispatchFixture()
	f.human.err = errors.New("bot removed from chat")
	d := f.dispatcher(f.human, nil, DefaultDispatchConfig())

	f.enqueue(t, domain.OutboundJob{RecipientID: "ou_anna", Text: "x", Sender: domain.IdentityHuman, Category: domain.CategoryNotification})
	res, err := d.DispatchNext(context.Background())
	require.NoError(t, err)
	require.Equal(t, DispatchAbandoned, res)
	require.Len(t, f.queue.deadLetters(), 1)
}

func TestDispatchGroupReplyIsBroadcast(t *testing.T) {
	f := newDispatchFixture()
	broadcaster := newTestBroadcast(&mockTranslator{}, f.queue, "en", "de", "pl")
	d := f.dispatcher(f.human, broadcaster, DefaultDispatchConfig())
	ctx := context.Background()

	f.enqueue(t, domain.OutboundJob{
		RecipientID: "oc_site", ChatID: "oc_site", IsGroup: true,
		Text: "Piotr kommt um 9.", TargetLanguage: "de",
		Sender: domain.IdentityHuman, Category: domain.CategoryResponse,
	})
	res, err := d.DispatchNext(ctx)
	require.NoError(t, err)
	require.Equal(t, DispatchSent, res)

	jobs := f.queue.snapshot()
	require.Len(t, jobs, 2)
	for _, job := range jobs {
		require.Equal(t, domain.IdentityBroadcast, job.Sender)
		require.Equal(t, domain.CategoryTranslation, job.Category)
		require.NotEqual(t, "de", job.TargetLanguage)
	}

	// Direct replies are not broadcast
	f2 := newDispatchFixture()
	d2 := f2.dispatcher(f2.human, newTestBroadcast(&mockTranslator{}, f2.queue, "en", "de"), DefaultDispatchConfig())
	f2.enqueue(t, domain.OutboundJob{
		RecipientID: "ou_anna", Text: "Hallo", TargetLanguage: "de",
		Sender: domain.IdentityHuman, Category: domain.CategoryResponse,
	})
	_, err = d2.DispatchNext(ctx)
	require.NoError(t, err)
	require.Empty(t, f2.queue.snapshot())
}

func TestDispatchQueueError(t *testing.T) {
	f := newDispatchFixture()
	f.queue.err = errors.New("disk I/O error")
	d := f.dispatcher(f.human, nil, DefaultDispatchConfig())

	_, err := d.DispatchNext(context.Background())
	require.Error(t, err)
}

func TestDispatchClaimsUnroutedJobs(t *testing.T) {
	f := newDispatchFixture()
	ctx := context.Background()
	claiming := DefaultDispatchConfig()
	claiming.ClaimUnrouted = true
	human := f.dispatcher(f.human, nil, claiming)
	broadcast := f.dispatcher(f.broadcast, nil, DefaultDispatchConfig())

	f.enqueue(t, domain.OutboundJob{RecipientID: "ou_anna", Text: "stray", Sender: "bot", Category: domain.CategoryResponse})
	f.enqueue(t, domain.OutboundJob{RecipientID: "ou_anna", Text: "blank", Sender: "", Category: domain.CategoryNotification})
	f.enqueue(t, domain.OutboundJob{RecipientID: "ou_anna", Text: "See you at 9.", Sender: domain.IdentityHuman, Category: domain.CategoryResponse})

	// Only the claiming dispatcher touches unrouted jobs
	res, err := broadcast.DispatchNext(ctx)
	require.NoError(t, err)
	require.Equal(t, DispatchEmpty, res)
	require.Len(t, f.queue.snapshot(), 3)

	// Its own queue comes first
	res, err = human.DispatchNext(ctx)
	require.NoError(t, err)
	require.Equal(t, DispatchSent, res)

	for i := 0; i < 2; i++ {
		res, err = human.DispatchNext(ctx)
		require.NoError(t, err)
		require.Equal(t, DispatchRefused, res)
	}
	res, err = human.DispatchNext(ctx)
	require.NoError(t, err)
	require.Equal(t, DispatchEmpty, res)

	require.Equal(t, []string{"See you at 9."}, f.human.sentTexts())
	require.Empty(t, f.broadcast.sentTexts())
	require.Empty(t, f.queue.snapshot())

	dead := f.queue.deadLetters()
	require.Len(t, dead, 2)
	for _, d := range dead {
		require.Contains(t, d.Reason, domain.ErrRouteViolation.Error())
	}
}

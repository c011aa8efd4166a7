package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/usecase"
)

func TestDispatcherDrainsBothIdentities(t *testing.T) {
	env := newTestEnv(t, german, true)
	ctx := context.Background()

	human := &fakeChat{identity: domain.IdentityHuman}
	bcast := &fakeChat{identity: domain.IdentityBroadcast}
	policy := domain.DefaultRoutingPolicy()
	cfg := usecase.DefaultDispatchConfig()

	d := NewDispatcher(DispatcherConfig{PollInterval: 10 * time.Millisecond}, nil,
		usecase.NewDispatchUsecase(env.repos.Queue, human, env.repos.Markers, policy, nil, cfg, nil),
		usecase.NewDispatchUsecase(env.repos.Queue, bcast, env.repos.Markers, policy, nil, cfg, nil),
	)
	d.Start(ctx)
	defer d.Stop()

	_, err := env.repos.Queue.Enqueue(ctx, &domain.OutboundJob{
		RecipientID: "ou_anna", Text: "Morgen um 9 Uhr.",
		Sender: domain.IdentityHuman, Category: domain.CategoryResponse,
	})
	require.NoError(t, err)
	_, err = env.repos.Queue.Enqueue(ctx, &domain.OutboundJob{
		RecipientID: "oc_site", ChatID: "oc_site", IsGroup: true, Text: "English:\nTiles are here.",
		TargetLanguage: "en", OriginalText: "Die Fliesen sind da.",
		Sender: domain.IdentityBroadcast, Category: domain.CategoryTranslation,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(human.texts()) == 1 && len(bcast.texts()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, []string{"Morgen um 9 Uhr."}, human.texts())
	require.Eventually(t, func() bool {
		ok, err := env.repos.Markers.IsMarked(ctx, "om_broadcast_1")
		return err == nil && ok
	}, time.Second, 10*time.Millisecond)
	require.Zero(t, env.depth(t, domain.IdentityHuman))
}

func TestDispatcherStopWithoutStart(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{}, nil)
	d.Stop()
}

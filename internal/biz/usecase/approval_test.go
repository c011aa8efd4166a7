package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaydesk/relay/internal/biz/domain"
)

type approvalFixture struct {
	uc          *ApprovalUsecase
	store       *memApprovals
	queue       *memQueue
	corrections *memCorrections
}

func newApprovalFixture() *approvalFixture {
	queue := newMemQueue()
	corrections := &memCorrections{}
	store := newMemApprovals(queue, corrections)
	translation, _ := newTestTranslation(&mockTranslator{})
	return &approvalFixture{
		uc:          NewApprovalUsecase(store, translation, nil),
		store:       store,
		queue:       queue,
		corrections: corrections,
	}
}

func groupApproval() *domain.PendingApproval {
	return &domain.PendingApproval{
		SenderID:        "ou_anna",
		SenderName:      "Anna",
		IncomingMessage: "Wann kommt Piotr morgen?",
		Suggestion:      "Piotr kommt morgen um 9 Uhr.",
		Language:        "de",
		MessageType:     domain.TypeScheduling,
		Urgency:         domain.UrgencyMedium,
		Confidence:      60,
		Action:          domain.ActionQueueApproval,
		IsGroup:         true,
		ChatID:          "oc_site",
		ChatTitle:       "Mueller site",
		TopicID:         "om_root",
	}
}

func TestApprovalApprove(t *testing.T) {
	f := newApprovalFixture()
	ctx := context.Background()

	token, err := f.uc.Create(ctx, groupApproval())
	require.NoError(t, err)
	require.Len(t, token, 32)

	jobID, err := f.uc.Approve(ctx, token)
	require.NoError(t, err)
	require.NotZero(t, jobID)

	jobs := f.queue.snapshot()
	require.Len(t, jobs, 1)
	job := jobs[0]
	require.Equal(t, "Piotr kommt morgen um 9 Uhr.", job.Text)
	require.Equal(t, "oc_site", job.Target())
	require.Equal(t, "om_root", job.TopicID)
	require.Equal(t, domain.IdentityHuman, job.Sender)
	require.Equal(t, domain.CategoryResponse, job.Category)
	require.Equal(t, "de", job.TargetLanguage)

	// Single use
	_, err = f.uc.Approve(ctx, token)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Len(t, f.queue.snapshot(), 1)
	require.Empty(t, f.corrections.items)
}

func TestApprovalEditRecordsCorrection(t *testing.T) {
	f := newApprovalFixture()
	ctx := context.Background()

	token, err := f.uc.Create(ctx, groupApproval())
	require.NoError(t, err)

	_, err = f.uc.Edit(ctx, token, "  Piotr kommt um 10 Uhr.  ")
	require.NoError(t, err)

	jobs := f.queue.snapshot()
	require.Len(t, jobs, 1)
	require.Equal(t, "Piotr kommt um 10 Uhr.", jobs[0].Text)

	require.Len(t, f.corrections.items, 1)
	c := f.corrections.items[0]
	require.Equal(t, "Piotr kommt morgen um 9 Uhr.", c.AISuggestion)
	require.Equal(t, "Piotr kommt um 10 Uhr.", c.FinalEdit)
	require.Equal(t, "de", c.Language)
	require.True(t, c.IsGroup)

	require.Len(t, f.store.interactions, 1)
	require.True(t, f.store.interactions[0].WasEdited)
}

func TestApprovalEditEmptyKeepsApproval(t *testing.T) {
	f := newApprovalFixture()
	ctx := context.Background()

	token, err := f.uc.Create(ctx, groupApproval())
	require.NoError(t, err)

	_, err = f.uc.Edit(ctx, token, "   ")
	require.ErrorIs(t, err, domain.ErrEmptyMessage)

	_, err = f.uc.Get(ctx, token)
	require.NoError(t, err)
	require.Empty(t, f.queue.snapshot())
}

func TestApprovalSkip(t *testing.T) {
	f := newApprovalFixture()
	ctx := context.Background()

	token, err := f.uc.Create(ctx, groupApproval())
	require.NoError(t, err)

	require.NoError(t, f.uc.Skip(ctx, token))
	require.Empty(t, f.queue.snapshot())
	require.Empty(t, f.corrections.items)
	require.ErrorIs(t, f.uc.Skip(ctx, token), domain.ErrNotFound)
}

func TestApprovalConcurrentResolveSendsOnce(t *testing.T) {
	f := newApprovalFixture()
	ctx := context.Background()

	token, err := f.uc.Create(ctx, groupApproval())
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = f.uc.Approve(ctx, token)
			} else {
				_, err = f.uc.Edit(ctx, token, "edited")
			}
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			} else if !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, success)
	require.Len(t, f.queue.snapshot(), 1)
}

func TestApprovalPreviewLeavesApproval(t *testing.T) {
	f := newApprovalFixture()
	ctx := context.Background()

	token, err := f.uc.Create(ctx, groupApproval())
	require.NoError(t, err)

	res, err := f.uc.Preview(ctx, token, "pl")
	require.NoError(t, err)
	require.Equal(t, "[pl] Piotr kommt morgen um 9 Uhr.", res.Text)
	require.False(t, res.Failed)

	n, err := f.uc.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = f.uc.Preview(ctx, "missing", "pl")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApprovalExpireStale(t *testing.T) {
	f := newApprovalFixture()
	ctx := context.Background()
	now := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	f.uc.now = func() time.Time { return now }

	old := groupApproval()
	old.CreatedAt = now.Add(-48 * time.Hour)
	_, err := f.uc.Create(ctx, old)
	require.NoError(t, err)

	fresh := groupApproval()
	fresh.CreatedAt = now.Add(-time.Hour)
	freshToken, err := f.uc.Create(ctx, fresh)
	require.NoError(t, err)

	n, err := f.uc.ExpireStale(ctx, 0)
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = f.uc.ExpireStale(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	pending, err := f.uc.List(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, freshToken, pending[0].Token)
	require.Empty(t, f.queue.snapshot())
}

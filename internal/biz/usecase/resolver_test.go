package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relaydesk/relay/internal/biz/domain"
)

func TestResolveProjectAndCustomer(t *testing.T) {
	uc := NewResolverUsecase(&memDirectory{dir: testDirectory()}, nil)

	rc := uc.Resolve(context.Background(), domain.Entities{CustomerName: ptr("mueller")})
	require.NotNil(t, rc.Project)
	require.Equal(t, "PRJ-001", rc.Project.ProjectID)
	require.NotNil(t, rc.Customer)
	require.Equal(t, "CUST-001", rc.Customer.CustomerID)
	require.Empty(t, rc.Note)

	rc = uc.Resolve(context.Background(), domain.Entities{ProjectName: ptr("prj-001")})
	require.True(t, rc.HasProject())
}

func TestResolveScheduleNarrowedByWorker(t *testing.T) {
	uc := NewResolverUsecase(&memDirectory{dir: testDirectory()}, nil)

	all := uc.Resolve(context.Background(), domain.Entities{Date: ptr("2024-05-02")})
	require.Len(t, all.Schedule, 2)

	narrowed := uc.Resolve(context.Background(), domain.Entities{
		Date:            ptr("2024-05-02"),
		MentionedPerson: ptr("piotr"),
	})
	require.NotNil(t, narrowed.Worker)
	require.Len(t, narrowed.Schedule, 1)
	require.Equal(t, "Tiling", narrowed.Schedule[0].Task)
}

func TestResolveSimilarIssues(t *testing.T) {
	uc := NewResolverUsecase(&memDirectory{dir: testDirectory()}, nil)

	rc := uc.Resolve(context.Background(), domain.Entities{ProblemType: ptr("leak")})
	require.Len(t, rc.SimilarIssues, 1)
	require.Equal(t, "Replaced seal", rc.SimilarIssues[0].Solution)
}

func TestResolveNothingFoundCarriesNote(t *testing.T) {
	uc := NewResolverUsecase(&memDirectory{dir: testDirectory()}, nil)

	rc := uc.Resolve(context.Background(), domain.Entities{CustomerName: ptr("Schmidt")})
	require.True(t, rc.IsEmpty())
	require.True(t, rc.NoData())

	rc = uc.Resolve(context.Background(), domain.Entities{})
	require.True(t, rc.NoData())
}

func TestResolveDirectoryErrorIsNoMatch(t *testing.T) {
	uc := NewResolverUsecase(&memDirectory{dir: testDirectory(), err: errors.New("table missing")}, nil)

	rc := uc.Resolve(context.Background(), domain.Entities{
		CustomerName: ptr("mueller"),
		Date:         ptr("2024-05-02"),
	})
	require.True(t, rc.NoData())
}

package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relaydesk/relay/internal/biz/domain"
)

func newReviewAPI(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/approvals":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"approvals": []domain.PendingApproval{
					{Token: "t1", SenderName: "Anna", IncomingMessage: "Hallo", Suggestion: "Hi"},
				},
				"count": 1,
			})
		case r.Method == http.MethodGet && r.URL.Path == "/api/approvals/t1":
			json.NewEncoder(w).Encode(domain.PendingApproval{Token: "t1", Suggestion: "Hi"})
		case r.Method == http.MethodPost && r.URL.Path == "/api/approvals/t1/approve":
			json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "job_id": 7})
		case r.Method == http.MethodPost && r.URL.Path == "/api/approvals/t1/edit":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["message"] == "" {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": "message is required"})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "job_id": 8})
		case r.Method == http.MethodPost && r.URL.Path == "/api/approvals/t1/skip":
			json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
		case r.Method == http.MethodPost && r.URL.Path == "/api/approvals/t1/translate":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true, "translated": "Cześć", "language": body["language"], "failed": false,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": "not found"})
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClientListAndGet(t *testing.T) {
	client := NewClient(newReviewAPI(t).URL)
	ctx := context.Background()

	list, err := client.ListApprovals(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Anna", list[0].SenderName)

	a, err := client.GetApproval(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, "Hi", a.Suggestion)

	_, err = client.GetApproval(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClientResolve(t *testing.T) {
	client := NewClient(newReviewAPI(t).URL)
	ctx := context.Background()

	id, err := client.Approve(ctx, "t1")
	require.NoError(t, err)
	require.EqualValues(t, 7, id)

	id, err = client.Edit(ctx, "t1", "Hello there")
	require.NoError(t, err)
	require.EqualValues(t, 8, id)

	_, err = client.Edit(ctx, "t1", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "message is required")

	require.NoError(t, client.Skip(ctx, "t1"))
	require.ErrorIs(t, client.Skip(ctx, "gone"), ErrNotFound)
}

func TestClientTranslate(t *testing.T) {
	client := NewClient(newReviewAPI(t).URL)

	p, err := client.Translate(context.Background(), "t1", "pl")
	require.NoError(t, err)
	require.Equal(t, "Cześć", p.Translated)
	require.Equal(t, "pl", p.Language)
	require.False(t, p.Failed)
}

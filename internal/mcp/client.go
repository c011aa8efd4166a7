package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/relaydesk/relay/internal/biz/domain"
)

// ErrNotFound is returned for unknown or already resolved tokens
var ErrNotFound = errors.New("approval not found")

// Client is the HTTP client of the review API
type Client struct {
	http *resty.Client
}

// NewClient creates a new review API client
func NewClient(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second).
			SetHeader("Accept", "application/json"),
	}
}

type apiError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type approvalList struct {
	Approvals []domain.PendingApproval `json:"approvals"`
	Count     int                      `json:"count"`
}

type jobResult struct {
	Success bool  `json:"success"`
	JobID   int64 `json:"job_id"`
}

// Preview is a translation preview of a suggestion
type Preview struct {
	Translated string `json:"translated"`
	Language   string `json:"language"`
	Failed     bool   `json:"failed"`
}

// ListApprovals returns pending approvals, oldest first
func (c *Client) ListApprovals(ctx context.Context) ([]domain.PendingApproval, error) {
	var out approvalList
	if err := c.do(ctx, http.MethodGet, "/api/approvals", "", nil, &out); err != nil {
		return nil, err
	}
	return out.Approvals, nil
}

// GetApproval returns one approval
func (c *Client) GetApproval(ctx context.Context, token string) (*domain.PendingApproval, error) {
	var out domain.PendingApproval
	if err := c.do(ctx, http.MethodGet, "/api/approvals/{token}", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Approve sends the suggestion and returns the queued job ID
func (c *Client) Approve(ctx context.Context, token string) (int64, error) {
	var out jobResult
	if err := c.do(ctx, http.MethodPost, "/api/approvals/{token}/approve", token, nil, &out); err != nil {
		return 0, err
	}
	return out.JobID, nil
}

// Edit sends the reviewer's text instead of the suggestion
func (c *Client) Edit(ctx context.Context, token, message string) (int64, error) {
	var out jobResult
	body := map[string]string{"message": message}
	if err := c.do(ctx, http.MethodPost, "/api/approvals/{token}/edit", token, body, &out); err != nil {
		return 0, err
	}
	return out.JobID, nil
}

// Skip discards the approval
func (c *Client) Skip(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/approvals/{token}/skip", token, nil, nil)
}

// Translate previews the suggestion in another language
func (c *Client) Translate(ctx context.Context, token, language string) (*Preview, error) {
	var out Preview
	body := map[string]string{"language": language}
	if err := c.do(ctx, http.MethodPost, "/api/approvals/{token}/translate", token, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, result interface{}) error {
	var apiErr apiError
	req := c.http.R().SetContext(ctx).SetError(&apiErr)
	if token != "" {
		req.SetPathParam("token", token)
	}
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("failed to call review API: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = resp.Status()
		}
		return fmt.Errorf("review API error (%d): %s", resp.StatusCode(), msg)
	}
	return nil
}

package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/relaydesk/relay/internal/biz/domain"
)

// Reviewer is the review API as seen by the tools
type Reviewer interface {
	ListApprovals(ctx context.Context) ([]domain.PendingApproval, error)
	GetApproval(ctx context.Context, token string) (*domain.PendingApproval, error)
	Approve(ctx context.Context, token string) (int64, error)
	Edit(ctx context.Context, token, message string) (int64, error)
	Skip(ctx context.Context, token string) error
	Translate(ctx context.Context, token, language string) (*Preview, error)
}

// Server exposes the review workflow as MCP tools
type Server struct {
	server   *mcp.Server
	reviewer Reviewer
	logger   *zap.Logger
}

// NewServer creates a new review MCP server
func NewServer(reviewer Reviewer, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "relay-review",
			Version: version,
		}, nil),
		reviewer: reviewer,
		logger:   logger,
	}
	s.registerTools()
	return s
}

// Run serves the tools over stdio until the client disconnects
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("review MCP server started")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_pending_approvals",
		Description: "List drafted replies waiting for review, oldest first.",
	}, s.listPending)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_approval",
		Description: "Show one pending approval with the incoming message, the suggested reply and the classification.",
	}, s.getApproval)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "approve_reply",
		Description: "Send the suggested reply unchanged. The token is consumed.",
	}, s.approve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "edit_reply",
		Description: "Send an edited reply instead of the suggestion. The edit is kept as a correction for future drafts.",
	}, s.edit)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "skip_approval",
		Description: "Discard a pending approval without sending anything.",
	}, s.skip)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "preview_translation",
		Description: "Translate the suggested reply into another language without sending it.",
	}, s.preview)
}

// ApprovalSummary is a compact view of a pending approval
type ApprovalSummary struct {
	Token      string `json:"token"`
	Sender     string `json:"sender"`
	Chat       string `json:"chat,omitempty"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
	Type       string `json:"type"`
	Urgency    string `json:"urgency"`
	Confidence int    `json:"confidence"`
	Action     string `json:"action"`
	Reason     string `json:"reason,omitempty"`
	EscalateTo string `json:"escalate_to,omitempty"`
	Language   string `json:"language"`
	// Translation is the incoming message in the operator language
	Translation string `json:"translation,omitempty"`
}

func summarize(a *domain.PendingApproval) ApprovalSummary {
	sender := a.SenderName
	if sender == "" {
		sender = a.SenderID
	}
	chat := a.ChatTitle
	if a.IsGroup && chat == "" {
		chat = a.ChatID
	}
	out := ApprovalSummary{
		Token:      a.Token,
		Sender:     sender,
		Chat:       chat,
		Message:    a.IncomingMessage,
		Suggestion: a.Suggestion,
		Type:       string(a.MessageType),
		Urgency:    string(a.Urgency),
		Confidence: a.Confidence,
		Action:     string(a.Action),
		Reason:     a.Reason,
		EscalateTo: a.EscalateTo,
		Language:   a.Language,
	}
	if a.TranslatedMessage != "" && a.TranslatedMessage != a.IncomingMessage {
		out.Translation = a.TranslatedMessage
	}
	return out
}

// ListPendingInput is empty - no input needed
type ListPendingInput struct{}

// ListPendingOutput contains the pending approvals
type ListPendingOutput struct {
	Approvals []ApprovalSummary `json:"approvals"`
	Count     int               `json:"count"`
	Error     string            `json:"error,omitempty"`
}

func (s *Server) listPending(ctx context.Context, req *mcp.CallToolRequest, input ListPendingInput) (*mcp.CallToolResult, ListPendingOutput, error) {
	list, err := s.reviewer.ListApprovals(ctx)
	if err != nil {
		return nil, ListPendingOutput{Error: s.describe("list_pending_approvals", err)}, nil
	}
	out := ListPendingOutput{Approvals: make([]ApprovalSummary, 0, len(list))}
	for i := range list {
		out.Approvals = append(out.Approvals, summarize(&list[i]))
	}
	out.Count = len(out.Approvals)
	return nil, out, nil
}

// TokenInput identifies one approval
type TokenInput struct {
	Token string `json:"token" jsonschema:"The approval token"`
}

// GetApprovalOutput contains one approval
type GetApprovalOutput struct {
	Approval *ApprovalSummary `json:"approval,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func (s *Server) getApproval(ctx context.Context, req *mcp.CallToolRequest, input TokenInput) (*mcp.CallToolResult, GetApprovalOutput, error) {
	if input.Token == "" {
		return nil, GetApprovalOutput{Error: "token is required"}, nil
	}
	a, err := s.reviewer.GetApproval(ctx, input.Token)
	if err != nil {
		return nil, GetApprovalOutput{Error: s.describe("get_approval", err)}, nil
	}
	summary := summarize(a)
	return nil, GetApprovalOutput{Approval: &summary}, nil
}

// SendOutput is the result of approving or editing
type SendOutput struct {
	Success bool   `json:"success"`
	JobID   int64  `json:"job_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) approve(ctx context.Context, req *mcp.CallToolRequest, input TokenInput) (*mcp.CallToolResult, SendOutput, error) {
	if input.Token == "" {
		return nil, SendOutput{Error: "token is required"}, nil
	}
	jobID, err := s.reviewer.Approve(ctx, input.Token)
	if err != nil {
		return nil, SendOutput{Error: s.describe("approve_reply", err)}, nil
	}
	return nil, SendOutput{Success: true, JobID: jobID}, nil
}

// EditInput replaces the suggestion
type EditInput struct {
	Token   string `json:"token" jsonschema:"The approval token"`
	Message string `json:"message" jsonschema:"The reply to send instead of the suggestion"`
}

func (s *Server) edit(ctx context.Context, req *mcp.CallToolRequest, input EditInput) (*mcp.CallToolResult, SendOutput, error) {
	if input.Token == "" {
		return nil, SendOutput{Error: "token is required"}, nil
	}
	if input.Message == "" {
		return nil, SendOutput{Error: "message is required"}, nil
	}
	jobID, err := s.reviewer.Edit(ctx, input.Token, input.Message)
	if err != nil {
		return nil, SendOutput{Error: s.describe("edit_reply", err)}, nil
	}
	return nil, SendOutput{Success: true, JobID: jobID}, nil
}

// SkipOutput is the result of skipping
type SkipOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) skip(ctx context.Context, req *mcp.CallToolRequest, input TokenInput) (*mcp.CallToolResult, SkipOutput, error) {
	if input.Token == "" {
		return nil, SkipOutput{Error: "token is required"}, nil
	}
	if err := s.reviewer.Skip(ctx, input.Token); err != nil {
		return nil, SkipOutput{Error: s.describe("skip_approval", err)}, nil
	}
	return nil, SkipOutput{Success: true}, nil
}

// PreviewInput selects the preview language
type PreviewInput struct {
	Token    string `json:"token" jsonschema:"The approval token"`
	Language string `json:"language" jsonschema:"Target language code such as en, de, pl"`
}

// PreviewOutput contains the translated suggestion
type PreviewOutput struct {
	Translated string `json:"translated,omitempty"`
	Language   string `json:"language,omitempty"`
	Failed     bool   `json:"failed"`
	Error      string `json:"error,omitempty"`
}

func (s *Server) preview(ctx context.Context, req *mcp.CallToolRequest, input PreviewInput) (*mcp.CallToolResult, PreviewOutput, error) {
	if input.Token == "" || input.Language == "" {
		return nil, PreviewOutput{Error: "token and language are required"}, nil
	}
	p, err := s.reviewer.Translate(ctx, input.Token, input.Language)
	if err != nil {
		return nil, PreviewOutput{Error: s.describe("preview_translation", err)}, nil
	}
	return nil, PreviewOutput{Translated: p.Translated, Language: p.Language, Failed: p.Failed}, nil
}

func (s *Server) describe(tool string, err error) string {
	if errors.Is(err, ErrNotFound) {
		return "approval not found or already handled"
	}
	s.logger.Warn("tool call failed", zap.String("tool", tool), zap.Error(err))
	return fmt.Sprintf("%s failed: %v", tool, err)
}

package repo

import (
	"context"

	"github.com/relaydesk/relay/internal/biz/domain"
)

// ClassifyRequest is the input to a classification call
type ClassifyRequest struct {
	Message domain.Message
	// Text is the message text in the operator language
	Text    string
	History []domain.HistoryEntry
	BotName string
}

// ClassifierRepo is the external classification judgment.
// Implementations return an error for call failures and schema violations;
// callers recover into fallback classifications.
type ClassifierRepo interface {
	// ClassifyDirect classifies a direct message
	ClassifyDirect(ctx context.Context, req ClassifyRequest) (*domain.Classification, error)

	// ClassifyGroup classifies a group message and decides should_respond
	ClassifyGroup(ctx context.Context, req ClassifyRequest) (*domain.Classification, error)
}

// ReplyRequest is the input to a reply drafting call
type ReplyRequest struct {
	Message        domain.Message
	Classification domain.Classification
	Context        *domain.ResolvedContext
	Corrections    []domain.Correction
	TargetLanguage domain.Language
}

// ReplyRepo drafts replies
type ReplyRepo interface {
	Draft(ctx context.Context, req ReplyRequest) (*domain.ReplyDraft, error)
}

// TranslatorRepo is the external detection and translation call
type TranslatorRepo interface {
	// Detect identifies the language of text
	Detect(ctx context.Context, text string) (*domain.Detection, error)

	// Translate translates text from source to target. hint is optional
	// conversation context.
	Translate(ctx context.Context, text string, source, target domain.Language, hint string) (string, error)
}

package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
)

// CommandUsecase handles operator commands such as /language and /status.
// Replies are queued as notifications for the human identity.
type CommandUsecase struct {
	languages  *LanguageUsecase
	approvals  *ApprovalUsecase
	queue      repo.OutboundQueue
	operatorID string
}

// NewCommandUsecase creates a new command usecase
func NewCommandUsecase(
	languages *LanguageUsecase,
	approvals *ApprovalUsecase,
	queue repo.OutboundQueue,
	operatorID string,
) *CommandUsecase {
	return &CommandUsecase{languages: languages, approvals: approvals, queue: queue, operatorID: operatorID}
}

// Execute runs a command the operator sent in a direct chat. It returns
// false when msg is not an operator command. Group messages are never
// commands since the reply goes to the operator's direct chat.
func (uc *CommandUsecase) Execute(ctx context.Context, msg *domain.Message) (bool, error) {
	if !msg.IsCommand() || msg.IsGroup() || msg.SenderID == "" || msg.SenderID != uc.operatorID {
		return false, nil
	}

	fields := strings.Fields(strings.TrimSpace(msg.Text))
	var reply string
	switch strings.ToLower(fields[0]) {
	case "/language":
		reply = uc.language(ctx, fields[1:])
	case "/status":
		reply = uc.status(ctx)
	case "/help", "/start":
		reply = helpText()
	default:
		return false, nil
	}

	job := &domain.OutboundJob{
		RecipientID: msg.SenderID,
		Text:        reply,
		Sender:      domain.IdentityHuman,
		Category:    domain.CategoryNotification,
	}
	if _, err := uc.queue.Enqueue(ctx, job); err != nil {
		return true, fmt.Errorf("enqueue command reply: %w", err)
	}
	return true, nil
}

func (uc *CommandUsecase) language(ctx context.Context, args []string) string {
	if len(args) == 0 {
		current := uc.languages.OperatorLanguage(ctx)
		var codes []string
		for _, l := range domain.SupportedLanguages() {
			codes = append(codes, fmt.Sprintf("%s (%s)", l.Code, l.Name))
		}
		return fmt.Sprintf("Current language: %s\nUsage: /language <code>\nAvailable: %s",
			current.Name, strings.Join(codes, ", "))
	}
	lang, err := uc.languages.SetLanguage(ctx, uc.operatorID, args[0])
	if err != nil {
		return fmt.Sprintf("Could not set language: %v", err)
	}
	return fmt.Sprintf("Language set to %s", lang.Name)
}

func (uc *CommandUsecase) status(ctx context.Context) string {
	var sb strings.Builder
	sb.WriteString("STATUS\n")
	if n, err := uc.approvals.Count(ctx); err == nil {
		fmt.Fprintf(&sb, "Pending approvals: %d\n", n)
	} else {
		sb.WriteString("Pending approvals: unavailable\n")
	}
	for _, id := range domain.Identities {
		if n, err := uc.queue.Depth(ctx, id); err == nil {
			fmt.Fprintf(&sb, "Queued (%s): %d\n", id, n)
		}
	}
	fmt.Fprintf(&sb, "Language: %s", uc.languages.OperatorLanguage(ctx).Name)
	return sb.String()
}

func helpText() string {
	return "Commands:\n/language <code> - set your language\n/status - pending approvals and queue depth"
}

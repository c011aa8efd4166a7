package usecase

import (
	"fmt"
	"strings"

	"github.com/relaydesk/relay/internal/biz/domain"
)

// ReviewLink returns the review URL for an approval token
func ReviewLink(dashboardURL, token string) string {
	return strings.TrimRight(dashboardURL, "/") + "/api/approvals/" + token
}

// RenderNotification renders the reviewer notification for a message that
// needs review
func RenderNotification(
	msg *domain.Message,
	c domain.Classification,
	d domain.ReplyDraft,
	dec domain.Decision,
	token string,
	dashboardURL string,
) string {
	var sb strings.Builder
	if msg.IsGroup() {
		sb.WriteString("NEW GROUP MESSAGE\n")
		sb.WriteString(strings.Repeat("=", 30) + "\n")
		title := msg.ChatTitle
		if title == "" {
			title = msg.ChatID
		}
		fmt.Fprintf(&sb, "Group: %s\n", title)
		if msg.TopicName != "" {
			fmt.Fprintf(&sb, "Topic: %s\n", msg.TopicName)
		}
	} else {
		sb.WriteString("NEW DIRECT MESSAGE\n")
		sb.WriteString(strings.Repeat("=", 30) + "\n")
	}
	fmt.Fprintf(&sb, "From: %s\n", senderLabel(msg))
	if msg.SourceLanguage.Name != "" {
		fmt.Fprintf(&sb, "Language: %s\n", msg.SourceLanguage.Name)
	}
	fmt.Fprintf(&sb, "\nMessage: %s\n", msg.Text)

	sb.WriteString("\nANALYSIS\n")
	fmt.Fprintf(&sb, "- Type: %s\n", c.MessageType)
	fmt.Fprintf(&sb, "- Urgency: %s\n", c.Urgency)
	fmt.Fprintf(&sb, "- Confidence: %d%%\n", d.Confidence)
	if c.Degraded {
		sb.WriteString("- Could not classify, manual review required\n")
	}

	fmt.Fprintf(&sb, "\nSUGGESTION:\n%s\n", d.Text)
	fmt.Fprintf(&sb, "\nRecommended action: %s\n", strings.ToUpper(string(dec.Action)))
	if dec.Reason != "" {
		fmt.Fprintf(&sb, "Reason: %s\n", dec.Reason)
	}
	if dec.EscalateTo != "" {
		fmt.Fprintf(&sb, "Escalate to: %s\n", dec.EscalateTo)
	}
	if dec.Warning != "" {
		fmt.Fprintf(&sb, "Warning: %s\n", dec.Warning)
	}
	if d.MissingInfo != "" {
		fmt.Fprintf(&sb, "Missing info: %s\n", d.MissingInfo)
	}
	fmt.Fprintf(&sb, "\nReview: %s", ReviewLink(dashboardURL, token))
	return sb.String()
}

func senderLabel(msg *domain.Message) string {
	if msg.SenderName != "" {
		return msg.SenderName
	}
	return msg.SenderID
}

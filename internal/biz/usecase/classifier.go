package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
)

// ClassifierConfig contains classifier configuration
type ClassifierConfig struct {
	Timeout time.Duration
	// BotName is matched case-insensitively in group text to detect that
	// the bot or operator was addressed
	BotName string
}

// ClassifierUsecase turns messages into classifications and never fails
type ClassifierUsecase struct {
	classifier repo.ClassifierRepo
	config     ClassifierConfig
	logger     *zap.Logger
}

// NewClassifierUsecase creates a new classifier usecase
func NewClassifierUsecase(classifier repo.ClassifierRepo, config ClassifierConfig, logger *zap.Logger) *ClassifierUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassifierUsecase{classifier: classifier, config: config, logger: logger}
}

// Classify classifies a message. text is the message in the operator language.
// Call failures and schema violations yield the deterministic fallback.
func (uc *ClassifierUsecase) Classify(
	ctx context.Context,
	msg domain.Message,
	text string,
	history []domain.HistoryEntry,
) domain.Classification {
	group := msg.IsGroup()
	if len(history) > domain.MaxContextMessages {
		history = history[len(history)-domain.MaxContextMessages:]
	}

	req := repo.ClassifyRequest{Message: msg, Text: text, History: history, BotName: uc.config.BotName}

	callCtx, cancel := context.WithTimeout(ctx, uc.timeout())
	defer cancel()

	var (
		c   *domain.Classification
		err error
	)
	if group {
		c, err = uc.classifier.ClassifyGroup(callCtx, req)
	} else {
		c, err = uc.classifier.ClassifyDirect(callCtx, req)
	}
	if err == nil {
		err = validateClassification(c, group)
	}
	if err != nil {
		uc.logger.Warn("classification failed, using fallback",
			zap.String("message_id", msg.ID),
			zap.Bool("group", group),
			zap.Error(err))
		return domain.FallbackClassification(group, err.Error())
	}

	c.Group = group
	c.Confidence = domain.ClampConfidence(c.Confidence)
	c.Entities = c.Entities.Normalize()
	if group {
		if msg.AddressesOperator || mentionsName(text, uc.config.BotName) || mentionsName(msg.Text, uc.config.BotName) {
			c.BotMentioned = true
		}
		// Addressed messages are always answered
		if c.BotMentioned && !c.ShouldRespond {
			c.ShouldRespond = true
			c.ResponseReason = "Bot or operator was addressed directly"
		}
	}
	return *c
}

func (uc *ClassifierUsecase) timeout() time.Duration {
	if uc.config.Timeout <= 0 {
		return 30 * time.Second
	}
	return uc.config.Timeout
}

func validateClassification(c *domain.Classification, group bool) error {
	if c == nil {
		return errors.New("empty classification")
	}
	t, ok := domain.ParseMessageType(string(c.MessageType), group)
	if !ok {
		return fmt.Errorf("invalid message_type %q", c.MessageType)
	}
	c.MessageType = t
	u, ok := domain.ParseUrgency(string(c.Urgency))
	if !ok {
		return fmt.Errorf("invalid urgency %q", c.Urgency)
	}
	c.Urgency = u
	if c.Confidence < 0 || c.Confidence > 100 {
		return fmt.Errorf("confidence out of range: %d", c.Confidence)
	}
	return nil
}

// mentionsName reports whether text contains name as a word, ignoring case
func mentionsName(text, name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	lower := strings.ToLower(text)
	for i := 0; ; {
		idx := strings.Index(lower[i:], name)
		if idx < 0 {
			return false
		}
		start := i + idx
		end := start + len(name)
		if isBoundary(lower, start-1) && isBoundary(lower, end) {
			return true
		}
		i = start + 1
	}
}

func isBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	b := s[i]
	return !(b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_')
}

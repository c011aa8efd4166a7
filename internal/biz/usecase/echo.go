package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
)

// EchoConfig contains echo filter configuration
type EchoConfig struct {
	// BroadcastSenderID is the platform ID of the broadcast identity
	BroadcastSenderID string
	// Rechecks bounds how often a broadcast-identity message without a
	// marker is re-checked before it is treated as new input
	Rechecks int
	Wait     time.Duration
}

// EchoFilter recognises the system's own translation broadcasts using the
// sent-translation markers only
type EchoFilter struct {
	markers repo.MarkerRepo
	config  EchoConfig
	logger  *zap.Logger
	sleep   func(context.Context, time.Duration) error
}

// NewEchoFilter creates a new echo filter
func NewEchoFilter(markers repo.MarkerRepo, config EchoConfig, logger *zap.Logger) *EchoFilter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Rechecks <= 0 {
		config.Rechecks = 3
	}
	if config.Wait <= 0 {
		config.Wait = 200 * time.Millisecond
	}
	return &EchoFilter{markers: markers, config: config, logger: logger, sleep: sleepCtx}
}

// IsEcho reports whether msg is one of our own broadcasts. The broadcast
// identity only ever sends translations, so its messages are echoes even
// when the marker never shows up.
func (f *EchoFilter) IsEcho(ctx context.Context, msg *domain.Message) bool {
	if msg.ID != "" && f.marked(ctx, msg.ID) {
		return true
	}
	if f.config.BroadcastSenderID == "" || msg.SenderID != f.config.BroadcastSenderID {
		return false
	}
	// The dispatcher may still be writing the marker
	for i := 0; msg.ID != "" && i < f.config.Rechecks; i++ {
		if err := f.sleep(ctx, f.config.Wait); err != nil {
			break
		}
		if f.marked(ctx, msg.ID) {
			return true
		}
	}
	f.logger.Error("broadcast identity message without translation marker, dropping",
		zap.String("message_id", msg.ID),
		zap.String("chat_id", msg.ChatID))
	return true
}

func (f *EchoFilter) marked(ctx context.Context, id string) bool {
	ok, err := f.markers.IsMarked(ctx, id)
	if err != nil {
		f.logger.Warn("marker lookup failed", zap.String("message_id", id), zap.Error(err))
		return false
	}
	return ok
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

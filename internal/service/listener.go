package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/usecase"
)

// ListenerDeps groups the usecases the listener drives
type ListenerDeps struct {
	Echo        *usecase.EchoFilter
	Commands    *usecase.CommandUsecase
	Translation *usecase.TranslationUsecase
	Pipeline    *usecase.PipelineUsecase
	Broadcast   *usecase.BroadcastUsecase
}

// Listener consumes inbound messages on a single goroutine. One message is
// fully processed before the next one is taken.
type Listener struct {
	deps       ListenerDeps
	operatorID string
	logger     *zap.Logger

	events chan domain.Message
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewListener creates a new listener. buffer bounds the number of messages
// waiting to be processed.
func NewListener(deps ListenerDeps, operatorID string, buffer int, logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &Listener{
		deps:       deps,
		operatorID: operatorID,
		logger:     logger,
		events:     make(chan domain.Message, buffer),
	}
}

// Start starts the processing loop
func (l *Listener) Start(ctx context.Context) {
	l.ctx, l.cancel = context.WithCancel(ctx)

	l.wg.Add(1)
	go l.loop()

	l.logger.Info("listener started")
}

// Stop stops the loop and waits for the message in flight
func (l *Listener) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
	l.logger.Info("listener stopped")
}

// Submit hands a message to the loop. It blocks while the buffer is full and
// returns false once the listener is stopping.
func (l *Listener) Submit(msg domain.Message) bool {
	if l.ctx == nil || l.ctx.Err() != nil {
		return false
	}
	select {
	case <-l.ctx.Done():
		return false
	case l.events <- msg:
		return true
	}
}

func (l *Listener) loop() {
	defer l.wg.Done()

	for {
		select {
		case <-l.ctx.Done():
			return
		case msg := <-l.events:
			l.Handle(l.ctx, msg)
		}
	}
}

// Handle processes one inbound message synchronously
func (l *Listener) Handle(ctx context.Context, msg domain.Message) {
	if msg.IsEmpty() {
		return
	}
	log := l.logger.With(zap.String("message_id", msg.ID), zap.String("chat_id", msg.ChatID))

	if l.deps.Echo != nil && l.deps.Echo.IsEcho(ctx, &msg) {
		log.Debug("dropping own translation broadcast")
		return
	}

	if l.deps.Commands != nil {
		handled, err := l.deps.Commands.Execute(ctx, &msg)
		if err != nil {
			log.Error("operator command failed", zap.Error(err))
		}
		if handled {
			return
		}
	}

	// Detect once so the pipeline and the broadcast agree on the source
	if msg.SourceLanguage.Code == "" {
		msg = msg.WithLanguage(l.deps.Translation.Detect(ctx, msg.Text).Language)
	}

	if l.isOperator(&msg) {
		if msg.IsGroup() {
			l.broadcast(ctx, log, msg)
		}
		return
	}

	if !msg.IsGroup() {
		l.process(ctx, log, msg)
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		l.process(ctx, log, msg)
	}()
	go func() {
		defer wg.Done()
		l.broadcast(ctx, log, msg)
	}()
	wg.Wait()
}

func (l *Listener) isOperator(msg *domain.Message) bool {
	if msg.SenderRole == domain.RoleOperator {
		return true
	}
	return l.operatorID != "" && msg.SenderID == l.operatorID
}

func (l *Listener) process(ctx context.Context, log *zap.Logger, msg domain.Message) {
	out, err := l.deps.Pipeline.Process(ctx, msg)
	if err != nil {
		log.Error("failed to process message", zap.Error(err))
		return
	}
	log.Info("message processed",
		zap.String("action", string(out.Decision.Action)),
		zap.String("reason", out.Decision.Reason),
		zap.Int("confidence", out.Decision.Confidence))
}

func (l *Listener) broadcast(ctx context.Context, log *zap.Logger, msg domain.Message) {
	if l.deps.Broadcast == nil {
		return
	}
	n, err := l.deps.Broadcast.Broadcast(ctx, usecase.BroadcastRequest{
		Text:           msg.Text,
		SourceLanguage: msg.SourceLanguage.Code,
		ChatID:         msg.ChatID,
		TopicID:        msg.TopicID,
	})
	if err != nil {
		log.Warn("broadcast incomplete", zap.Error(err))
	}
	if n > 0 {
		log.Debug("broadcast queued", zap.Int("jobs", n))
	}
}

package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/relaydesk/relay/internal/biz/usecase"
)

// DispatcherConfig contains poll loop timing
type DispatcherConfig struct {
	// PollInterval is the wait after the queue was found empty
	PollInterval time.Duration
	// ErrorBackoff is the wait after a queue failure
	ErrorBackoff time.Duration
}

// Dispatcher runs one poll loop per sending identity
type Dispatcher struct {
	dispatchers []*usecase.DispatchUsecase
	config      DispatcherConfig
	logger      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a new dispatcher service
func NewDispatcher(config DispatcherConfig, logger *zap.Logger, dispatchers ...*usecase.DispatchUsecase) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.ErrorBackoff <= 0 {
		config.ErrorBackoff = 2 * time.Second
	}
	return &Dispatcher{dispatchers: dispatchers, config: config, logger: logger}
}

// Start starts one loop per identity
func (d *Dispatcher) Start(ctx context.Context) {
	d.ctx, d.cancel = context.WithCancel(ctx)

	for _, uc := range d.dispatchers {
		d.wg.Add(1)
		go d.loop(uc)
	}

	d.logger.Info("dispatcher started",
		zap.Int("identities", len(d.dispatchers)),
		zap.Duration("poll_interval", d.config.PollInterval))
}

// Stop stops all loops and waits for in-flight sends
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

func (d *Dispatcher) loop(uc *usecase.DispatchUsecase) {
	defer d.wg.Done()
	log := d.logger.With(zap.String("identity", string(uc.Identity())))

	for {
		if d.ctx.Err() != nil {
			return
		}
		res, err := uc.DispatchNext(d.ctx)
		switch {
		case err != nil:
			if d.ctx.Err() != nil {
				return
			}
			log.Error("dispatch failed", zap.Error(err))
			if !wait(d.ctx, d.config.ErrorBackoff) {
				return
			}
		case res == usecase.DispatchEmpty:
			if !wait(d.ctx, d.config.PollInterval) {
				return
			}
		}
	}
}

// wait sleeps for d and reports false when ctx ended first
func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

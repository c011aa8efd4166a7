package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/relaydesk/relay/internal/biz/repo"
	"github.com/relaydesk/relay/internal/biz/usecase"
)

// SweeperConfig contains housekeeping configuration
type SweeperConfig struct {
	Interval time.Duration
	// ApprovalMaxAge auto-skips older approvals; 0 disables expiry
	ApprovalMaxAge time.Duration
	// MarkerRetention is how long sent-translation markers are kept; 0 keeps them
	MarkerRetention time.Duration
}

// Sweeper expires stale approvals and purges old translation markers
type Sweeper struct {
	approvals *usecase.ApprovalUsecase
	markers   repo.MarkerRepo
	config    SweeperConfig
	logger    *zap.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a new sweeper
func NewSweeper(approvals *usecase.ApprovalUsecase, markers repo.MarkerRepo, config SweeperConfig, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	return &Sweeper{
		approvals: approvals,
		markers:   markers,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// Start starts the sweep loop
func (s *Sweeper) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.loop()

	s.logger.Info("sweeper started", zap.Duration("interval", s.config.Interval))
}

// Stop stops the sweeper
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.Sweep(s.ctx)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.ctx)
		}
	}
}

// Sweep runs one housekeeping pass
func (s *Sweeper) Sweep(ctx context.Context) {
	if s.approvals != nil && s.config.ApprovalMaxAge > 0 {
		n, err := s.approvals.ExpireStale(ctx, s.config.ApprovalMaxAge)
		if err != nil {
			s.logger.Error("failed to expire approvals", zap.Error(err))
		} else if n > 0 {
			s.logger.Info("expired stale approvals", zap.Int("count", n))
		}
	}

	if s.markers != nil && s.config.MarkerRetention > 0 {
		n, err := s.markers.Purge(ctx, s.now().Add(-s.config.MarkerRetention))
		if err != nil {
			s.logger.Error("failed to purge translation markers", zap.Error(err))
		} else if n > 0 {
			s.logger.Info("purged translation markers", zap.Int64("count", n))
		}
	}
}

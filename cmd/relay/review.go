package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/relaydesk/relay/internal/api"
	"github.com/relaydesk/relay/internal/biz/usecase"
	"github.com/relaydesk/relay/internal/data"
	"github.com/relaydesk/relay/internal/infra/llm"
	"github.com/relaydesk/relay/internal/service"
)

func newReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Serve the review API and expire stale approvals",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				env.cfg.Review.Addr = addr
			}
			return runReview(ctx, env)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (overrides review.addr).")
	return cmd
}

func runReview(ctx context.Context, env *runtimeEnv) error {
	cfg, logger := env.cfg, env.logger

	store, err := openStore(ctx, env)
	if err != nil {
		return err
	}
	defer store.Close()

	var client *llm.Client
	if cfg.OpenAI.APIKey != "" {
		if client, err = newLLM(cfg); err != nil {
			return err
		}
	} else {
		logger.Warn("openai.api_key not set, translation previews are unavailable")
	}

	repos := data.NewRepositories(store)
	approvals := usecase.NewApprovalUsecase(repos.Approvals, newTranslation(env, client, repos), logger.Named("approvals"))

	sweeper := service.NewSweeper(approvals, repos.Markers, service.SweeperConfig{
		Interval:        cfg.Review.SweepInterval,
		ApprovalMaxAge:  cfg.Review.ApprovalMaxAge,
		MarkerRetention: cfg.Review.MarkerRetention,
	}, logger.Named("sweeper"))
	sweeper.Start(ctx)
	defer sweeper.Stop()

	srv := api.NewServer(approvals, repos.Queue, cfg.Review.Addr, logger.Named("review-api"))
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("review API shutdown", zap.Error(err))
	}
	return nil
}

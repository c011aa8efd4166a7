package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/usecase"
	"github.com/relaydesk/relay/internal/data"
	"github.com/relaydesk/relay/internal/infra/feishu"
	"github.com/relaydesk/relay/internal/infra/llm"
	"github.com/relaydesk/relay/internal/service"
)

func newDispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Send queued outbound messages, one loop per sending identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			if err := env.cfg.ValidateDispatcher(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return runDispatch(ctx, env)
		},
	}
}

func runDispatch(ctx context.Context, env *runtimeEnv) error {
	cfg, logger := env.cfg, env.logger

	store, err := openStore(ctx, env)
	if err != nil {
		return err
	}
	defer store.Close()

	human, err := feishu.NewClient(feishu.Config{
		AppID:     cfg.Lark.HumanAppID,
		AppSecret: cfg.Lark.HumanAppSecret,
	}, logger.Named("feishu"))
	if err != nil {
		return err
	}
	broadcast, err := feishu.NewClient(feishu.Config{
		AppID:     cfg.Lark.BroadcastAppID,
		AppSecret: cfg.Lark.BroadcastAppSecret,
	}, logger.Named("feishu"))
	if err != nil {
		return err
	}

	repos := data.NewRepositories(store)

	var client *llm.Client
	if cfg.OpenAI.APIKey != "" {
		if client, err = newLLM(cfg); err != nil {
			return err
		}
	}
	broadcaster := usecase.NewBroadcastUsecase(newTranslation(env, client, repos), repos.Queue, cfg.ToBroadcastConfig(), logger.Named("broadcast"))

	policy := domain.DefaultRoutingPolicy()
	dispatchCfg := cfg.ToDispatchConfig()
	humanCfg := dispatchCfg
	humanCfg.ClaimUnrouted = true
	log := logger.Named("dispatcher")

	svc := service.NewDispatcher(service.DispatcherConfig{
		PollInterval: cfg.Dispatcher.PollInterval,
		ErrorBackoff: cfg.Dispatcher.ErrorBackoff,
	}, log,
		usecase.NewDispatchUsecase(repos.Queue, data.NewChatRepo(human, domain.IdentityHuman), repos.Markers, policy, broadcaster, humanCfg, log),
		usecase.NewDispatchUsecase(repos.Queue, data.NewChatRepo(broadcast, domain.IdentityBroadcast), repos.Markers, policy, nil, dispatchCfg, log),
	)
	svc.Start(ctx)
	log.Info("dispatching",
		zap.Int("max_attempts", dispatchCfg.MaxAttempts),
		zap.Duration("retry_backoff", dispatchCfg.RetryBackoff))

	<-ctx.Done()
	logger.Info("shutting down")
	svc.Stop()
	return nil
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/relaydesk/relay/internal/biz/usecase"
	"github.com/relaydesk/relay/internal/data"
	"github.com/relaydesk/relay/internal/infra/feishu"
	"github.com/relaydesk/relay/internal/server"
	"github.com/relaydesk/relay/internal/service"
)

func newListenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Receive chat messages, draft replies and queue them for review or sending",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			if err := env.cfg.ValidateListener(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return runListen(ctx, env)
		},
	}
}

func runListen(ctx context.Context, env *runtimeEnv) error {
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
	if err := human.FetchBotInfo(ctx); err != nil {
		logger.Warn("failed to fetch human identity info", zap.Error(err))
	}

	client, err := newLLM(cfg)
	if err != nil {
		return err
	}
	directory, err := newDirectory(ctx, cfg, store)
	if err != nil {
		return err
	}

	repos := data.NewRepositories(store)
	translation := newTranslation(env, client, repos)
	languages := usecase.NewLanguageUsecase(repos.Languages, cfg.Lark.OperatorUserID, cfg.Translation.OperatorLanguage, logger.Named("language"))
	approvals := usecase.NewApprovalUsecase(repos.Approvals, translation, logger.Named("approvals"))

	pipeline := usecase.NewPipelineUsecase(usecase.PipelineDeps{
		Translation: translation,
		Languages:   languages,
		Contexts:    usecase.NewContextBuilderUsecase(repos.History),
		Classifier: usecase.NewClassifierUsecase(
			data.NewClassifierRepo(client, cfg.Prompts),
			usecase.ClassifierConfig{Timeout: cfg.OpenAI.Timeout, BotName: cfg.Lark.BotName},
			logger.Named("classifier"),
		),
		Resolver:    usecase.NewResolverUsecase(directory, logger.Named("resolver")),
		Replies:     usecase.NewReplyUsecase(data.NewReplyRepo(client, cfg.Prompts), cfg.OpenAI.Timeout, logger.Named("reply")),
		Decider:     usecase.NewDecisionEngine(cfg.ToDecisionConfig()),
		Approvals:   approvals,
		Corrections: repos.Corrections,
		Queue:       repos.Queue,
		Notifier:    data.NewOperatorNotifier(human, cfg.Lark.OperatorChatID),
		Audit:       repos.Audit,
	}, usecase.PipelineConfig{DashboardURL: cfg.Review.DashboardURL}, logger.Named("pipeline"))

	broadcastID := broadcastOpenID(ctx, env)
	if broadcastID == "" {
		logger.Warn("broadcast identity unknown, echo detection relies on markers only")
	}

	listener := service.NewListener(service.ListenerDeps{
		Echo: usecase.NewEchoFilter(repos.Markers, usecase.EchoConfig{
			BroadcastSenderID: broadcastID,
		}, logger.Named("echo")),
		Commands:    usecase.NewCommandUsecase(languages, approvals, repos.Queue, cfg.Lark.OperatorUserID),
		Translation: translation,
		Pipeline:    pipeline,
		Broadcast:   usecase.NewBroadcastUsecase(translation, repos.Queue, cfg.ToBroadcastConfig(), logger.Named("broadcast")),
	}, cfg.Lark.OperatorUserID, 0, logger.Named("listener"))
	listener.Start(ctx)
	defer listener.Stop()

	chat := server.NewChatServer(human, listener, server.ChatConfig{
		OperatorUserID: cfg.Lark.OperatorUserID,
		BotOpenID:      human.BotOpenID(),
	}, logger.Named("server"))

	// The websocket client does not return on cancellation
	errCh := make(chan error, 1)
	go func() {
		errCh <- chat.Start(ctx)
	}()

	logger.Info("listening", zap.String("bot", human.BotName()))
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}

// broadcastOpenID returns the broadcast identity's open_id, from config or
// from the broadcast app itself
func broadcastOpenID(ctx context.Context, env *runtimeEnv) string {
	cfg := env.cfg
	if cfg.Lark.BroadcastOpenID != "" {
		return cfg.Lark.BroadcastOpenID
	}
	if cfg.Lark.BroadcastAppID == "" || cfg.Lark.BroadcastAppSecret == "" {
		return ""
	}
	client, err := feishu.NewClient(feishu.Config{
		AppID:     cfg.Lark.BroadcastAppID,
		AppSecret: cfg.Lark.BroadcastAppSecret,
	}, env.logger.Named("feishu"))
	if err != nil {
		return ""
	}
	if err := client.FetchBotInfo(ctx); err != nil {
		env.logger.Warn("failed to fetch broadcast identity info", zap.Error(err))
		return ""
	}
	return client.BotOpenID()
}

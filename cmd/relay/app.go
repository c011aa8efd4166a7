package main

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
	"github.com/relaydesk/relay/internal/biz/usecase"
	"github.com/relaydesk/relay/internal/conf"
	"github.com/relaydesk/relay/internal/data"
	"github.com/relaydesk/relay/internal/infra/llm"
)

// openStore opens the shared SQLite store
func openStore(ctx context.Context, env *runtimeEnv) (*data.Store, error) {
	cfg := env.cfg.Store
	store, err := data.OpenStore(ctx, data.StoreConfig{
		Path:        cfg.Path,
		LockRetries: cfg.LockRetries,
		LockBackoff: cfg.LockBackoff,
	}, env.logger.Named("store"))
	if err != nil {
		return nil, err
	}
	env.logger.Info("store opened", zap.String("path", cfg.Path))
	return store, nil
}

func newLLM(cfg *conf.Config) (*llm.Client, error) {
	return llm.NewClient(llm.Config{
		APIKey:    cfg.OpenAI.APIKey,
		BaseURL:   cfg.OpenAI.BaseURL,
		Model:     cfg.OpenAI.Model,
		FastModel: cfg.OpenAI.FastModel,
		Timeout:   cfg.OpenAI.Timeout,
	})
}

// newDirectory builds the configured directory backend
func newDirectory(ctx context.Context, cfg *conf.Config, store *data.Store) (data.DirectoryStore, error) {
	if cfg.Directory.Backend != data.DirectoryDynamoDB {
		return data.NewDirectory(cfg.Directory.Backend, store, nil, "")
	}
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return data.NewDirectory(cfg.Directory.Backend, store, dynamodb.NewFromConfig(awsCfg), cfg.Directory.DynamoDBTable)
}

// newTranslation builds the translation usecase. A nil client leaves
// translation offline: every call fails and callers keep the original text.
func newTranslation(env *runtimeEnv, client *llm.Client, repos *data.Repositories) *usecase.TranslationUsecase {
	var translator repo.TranslatorRepo = offlineTranslator{}
	if client != nil {
		translator = data.NewTranslatorRepo(client, env.cfg.Prompts)
	}
	return usecase.NewTranslationUsecase(
		translator,
		repos.Cache,
		usecase.TranslationConfig{Timeout: env.cfg.OpenAI.Timeout},
		env.logger.Named("translation"),
	)
}

var errTranslationOffline = errors.New("translation unavailable: openai.api_key is not set")

type offlineTranslator struct{}

func (offlineTranslator) Detect(ctx context.Context, text string) (*domain.Detection, error) {
	return nil, errTranslationOffline
}

func (offlineTranslator) Translate(ctx context.Context, text string, source, target domain.Language, hint string) (string, error) {
	return "", errTranslationOffline
}

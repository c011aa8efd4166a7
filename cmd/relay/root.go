package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/relaydesk/relay/internal/conf"
	"github.com/relaydesk/relay/internal/infra/logging"
	"github.com/relaydesk/relay/internal/infra/paramstore"
)

const version = "v0.4.0"

// Execute runs the root command
func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "relay",
		Short:        "Chat message-routing assistant",
		SilenceUsage: true,
		Version:      version,
	}

	cmd.PersistentFlags().String("config", "", "Config file path (optional, defaults to ./relay.yaml when present).")

	cmd.AddCommand(newListenCmd())
	cmd.AddCommand(newDispatchCmd())
	cmd.AddCommand(newReviewCmd())
	cmd.AddCommand(newReviewMCPCmd())
	cmd.AddCommand(newSeedDirectoryCmd())

	return cmd
}

// runtimeEnv is what every subcommand starts from
type runtimeEnv struct {
	cfg    *conf.Config
	logger *zap.Logger
}

// setup loads configuration, applies the secret overlay and builds the logger.
// The returned context is cancelled on SIGINT or SIGTERM.
func setup(cmd *cobra.Command) (context.Context, context.CancelFunc, *runtimeEnv, error) {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := conf.Load(configFile)
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)

	if cfg.Secrets.SSMPrefix != "" {
		awsCfg, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			stop()
			return nil, nil, nil, err
		}
		params, err := paramstore.New(ssm.NewFromConfig(awsCfg), cfg.Secrets.SSMPrefix)
		if err != nil {
			stop()
			return nil, nil, nil, err
		}
		if err := cfg.ApplySecrets(ctx, params); err != nil {
			stop()
			return nil, nil, nil, fmt.Errorf("failed to load secrets: %w", err)
		}
		logger.Info("secrets loaded from parameter store", zap.String("prefix", cfg.Secrets.SSMPrefix))
	}

	if err := cfg.Validate(); err != nil {
		stop()
		return nil, nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	cancel := func() {
		stop()
		_ = logger.Sync()
	}
	return ctx, cancel, &runtimeEnv{cfg: cfg, logger: logger}, nil
}

func loadAWSConfig(ctx context.Context, cfg *conf.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWS.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWS.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

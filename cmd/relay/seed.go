package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/relaydesk/relay/internal/data"
)

func newSeedDirectoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-directory",
		Short: "Load projects, customers, schedule, past issues and workers into the directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			file, _ := cmd.Flags().GetString("file")
			if file == "" {
				file = env.cfg.Directory.SeedFile
			}
			if file == "" {
				return fmt.Errorf("--file or directory.seed_file is required")
			}

			seed, err := data.LoadDirectorySeed(file)
			if err != nil {
				return err
			}

			store, err := openStore(ctx, env)
			if err != nil {
				return err
			}
			defer store.Close()

			directory, err := newDirectory(ctx, env.cfg, store)
			if err != nil {
				return err
			}
			if err := directory.Replace(ctx, seed); err != nil {
				return fmt.Errorf("failed to seed directory: %w", err)
			}

			env.logger.Info("directory seeded",
				zap.String("backend", env.cfg.Directory.Backend),
				zap.Int("projects", len(seed.Projects)),
				zap.Int("customers", len(seed.Customers)),
				zap.Int("schedule", len(seed.Schedule)),
				zap.Int("issues", len(seed.Issues)),
				zap.Int("workers", len(seed.Workers)))
			return nil
		},
	}
	cmd.Flags().String("file", "", "Directory seed YAML file.")
	return cmd
}

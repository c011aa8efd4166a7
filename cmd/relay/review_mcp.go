package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/relaydesk/relay/internal/infra/logging"
	"github.com/relaydesk/relay/internal/mcp"
)

func newReviewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review-mcp",
		Short: "Serve the review tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries the protocol; the logger writes to stderr
			logger, err := logging.New(os.Getenv("RELAY_LOG_LEVEL"), "json")
			if err != nil {
				return err
			}
			defer logger.Sync()

			apiURL, _ := cmd.Flags().GetString("api-url")
			if apiURL == "" {
				apiURL = os.Getenv("RELAY_REVIEW_API_URL")
			}
			if apiURL == "" {
				apiURL = "http://127.0.0.1:5000"
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server := mcp.NewServer(mcp.NewClient(apiURL), version, logger.Named("mcp"))
			return server.Run(ctx)
		},
	}
	cmd.Flags().String("api-url", "", "Review API base URL (default $RELAY_REVIEW_API_URL or http://127.0.0.1:5000).")
	return cmd
}

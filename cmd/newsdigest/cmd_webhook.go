package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"NewsDigest/internal/app"
	"NewsDigest/internal/config"
	"NewsDigest/internal/logging"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Register the Telegram webhook and bot commands",
	RunE:  runWebhook,
}

func runWebhook(cmd *cobra.Command, _ []string) error {
	ctx, stop := withSignals(cmd.Context())
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Error("close application", "error", err)
		}
	}()

	url, err := application.RegisterWebhook(ctx)
	if err != nil {
		return fmt.Errorf("register webhook: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "webhook set to %s\n", url)
	return nil
}

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"NewsDigest/internal/app"
	"NewsDigest/internal/config"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one pipeline run and print its record",
	RunE:  runOnce,
}

func runOnce(cmd *cobra.Command, _ []string) error {
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

	record, err := application.RunOnce(ctx)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run record: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if record.Status == domain.RunFailed {
		return fmt.Errorf("run %s failed", record.RunID)
	}
	return nil
}

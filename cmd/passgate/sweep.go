// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/config"
	"github.com/passgate/passgate/internal/logging"
)

// sweepBackendFactory is replaced in tests.
var sweepBackendFactory = openBackend

var sweepFlagKeys = map[string]string{
	"database-url": "database.url",
	"retention":    "auth.otp_retention",
}

// NewSweepCmd creates the sweep subcommand.
func NewSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired reset codes once",
		Long: `Delete reset codes that expired more than the retention period ago,
then exit. Unexpired codes are never removed.`,
		Args: cobra.NoArgs,
		RunE: runSweep,
	}
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL")
	cmd.Flags().Duration("retention", config.Default().Auth.OTPRetention, "how long expired codes are kept")
	return cmd
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, sweepFlagKeys)
	if err != nil {
		return err
	}
	if cfg.Database.Driver == config.DriverPostgres && cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("database.url is required (set DATABASE_URL or --database-url)")
	}

	logger := logging.Setup(serviceName, version, cfg.Log.Format, cmd.ErrOrStderr())
	ctx := cmd.Context()

	backend, err := sweepBackendFactory(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	sweeper, err := auth.NewSweeper(backend.Otps,
		auth.WithRetention(cfg.Auth.OTPRetention),
		auth.WithSweeperLogger(logger),
	)
	if err != nil {
		return err
	}
	n, err := sweeper.SweepOnce(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Deleted %d expired reset code(s)\n", n)
	return nil
}

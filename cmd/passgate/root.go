// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/passgate/passgate/internal/config"
)

// Global flags available to all subcommands.
var (
	configFile string
	envFile    string
)

// NewRootCmd creates the root command for the passgate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passgate",
		Short: "Passgate - account signup, login and password reset",
		Long: `Passgate is a small authentication service: signup, login with
session tokens, and password reset by emailed one-time codes.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file loaded before reading the environment")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSweepCmd())
	cmd.AddCommand(NewClientCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig layers the config file, env file, environment and the flags
// named in flagKeys. The result is not validated.
func loadConfig(cmd *cobra.Command, flagKeys map[string]string) (*config.Config, error) {
	return config.Load(config.Sources{
		File:     configFile,
		EnvFile:  envFile,
		Flags:    cmd.Flags(),
		FlagKeys: flagKeys,
	})
}

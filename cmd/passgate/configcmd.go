// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/passgate/passgate/internal/config"
)

// NewConfigCmd creates the config command and its subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and check configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the config file JSON Schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			cmd.Println(string(schema))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate FILE",
		Short: "Check a config file against the schema and startup rules",
		Long: `Check FILE against the JSON Schema, then load it together with the
environment and check that a server could start with the result.`,
		Args: cobra.ExactArgs(1),
		RunE: runValidateConfig,
	})

	return cmd
}

func runValidateConfig(cmd *cobra.Command, args []string) error {
	path := args[0]
	//nolint:gosec // G304: the path is the operator's own argument
	data, err := os.ReadFile(path)
	if err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}
	if err := config.ValidateYAML(data); err != nil {
		return oops.With("path", path).Wrap(err)
	}

	cfg, err := config.Load(config.Sources{File: path, EnvFile: envFile})
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return oops.With("path", path).Wrap(err)
	}

	cmd.Printf("%s: OK\n", path)
	return nil
}

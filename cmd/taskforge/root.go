// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/taskforge/taskforge/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the TaskForge CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taskforge",
		Short: "TaskForge - authentication and authorization service",
		Long: `TaskForge issues and verifies signed session tokens, enforces
role-based route policies, and manages account password lifecycles.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())

	return cmd
}

// registerConfigFlags declares the flag overrides config.Load consumes.
// Flag names mirror the koanf key paths; unset flags fall back to the
// file value, so the defaults here must match config.Default.
func registerConfigFlags(flags *pflag.FlagSet) {
	flags.String("server.addr", ":8080", "API listen address")
	flags.String("observability.addr", ":9090", "metrics/health listen address")
	flags.String("database.url", "", "PostgreSQL connection URL")
	flags.String("auth.secret", "", "token signing secret")
	flags.String("log.level", "info", "log level (debug, info, warn, error)")
	flags.String("log.format", "text", "log format (text, json)")
}

// loadConfig resolves configuration for a subcommand. The file is
// optional unless --config was given explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	explicit := cmd.Flags().Changed("config") || cmd.InheritedFlags().Changed("config")
	path := configFile
	if path == "" {
		path = "taskforge.yaml"
	}
	return config.Load(path, explicit, cmd.Flags())
}

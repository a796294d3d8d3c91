// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/taskforge/taskforge/internal/access"
	"github.com/taskforge/taskforge/internal/auth"
	authpg "github.com/taskforge/taskforge/internal/auth/postgres"
	"github.com/taskforge/taskforge/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	email    string
	password string
	timeout  time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the initial admin account",
		Long: `Creates an admin account if no user holds the ADMIN role yet.
This command is idempotent - it does nothing when an admin already exists.
The seeded account starts with the first-login latch set, so clients
prompt for a password change on first sign-in.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args, cfg)
		},
	}

	registerConfigFlags(cmd.Flags())
	cmd.Flags().StringVar(&cfg.email, "email", "admin@taskforge.local", "admin account email")
	cmd.Flags().StringVar(&cfg.password, "password", "", "admin account password (required)")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	//nolint:errcheck // flag was registered two lines up
	cmd.MarkFlagRequired("password")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string, seedCfg *seedConfig) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), seedCfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	users := authpg.NewUserRepository(pool)
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)

	created, err := seedAdmin(ctx, users, hasher, seedCfg.email, seedCfg.password)
	if err != nil {
		return err
	}
	if !created {
		cmd.Println("An admin account already exists, skipping seed")
		return nil
	}

	cmd.Printf("Admin account %s created\n", seedCfg.email)
	return nil
}

// seedAdmin creates an admin account unless one exists. Returns whether
// a new account was created.
func seedAdmin(ctx context.Context, users auth.UserRepository, hasher auth.PasswordHasher, email, password string) (bool, error) {
	count, err := users.CountWithRole(ctx, access.RoleAdmin)
	if err != nil {
		return false, oops.Code("SEED_FAILED").
			With("operation", "count admin users").
			Wrap(err)
	}
	if count > 0 {
		return false, nil
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return false, err
	}

	admin, err := auth.NewUser(email, "Administrator", hash, []string{access.RoleAdmin, access.RoleUser})
	if err != nil {
		return false, err
	}

	if err := users.Create(ctx, admin); err != nil {
		return false, oops.Code("SEED_FAILED").
			With("operation", "create admin user").
			Wrap(err)
	}
	return true, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/taskforge/taskforge/internal/access"
	"github.com/taskforge/taskforge/internal/auth"
	authpg "github.com/taskforge/taskforge/internal/auth/postgres"
	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/httpapi"
	"github.com/taskforge/taskforge/internal/logging"
	"github.com/taskforge/taskforge/internal/notify"
	"github.com/taskforge/taskforge/internal/observability"
	"github.com/taskforge/taskforge/internal/store"
	"github.com/taskforge/taskforge/internal/token"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication service",
		Long: `Start the HTTP API and the observability endpoints. Pending
database migrations are applied before the listeners come up.`,
		RunE: runServe,
	}

	registerConfigFlags(cmd.Flags())

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logging.SetDefault("taskforge", version, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	migrator, err := store.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return err
	}
	if err := migrator.Close(); err != nil {
		return err
	}

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	registry := access.NewRegistry(cfg.Access.ExtraRoles...)
	policy, err := access.NewPolicy(registry, cfg.Access.Rules, cfg.Access.Public)
	if err != nil {
		return err
	}

	codec, err := token.NewCodec([]byte(cfg.Auth.Secret), cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	if err != nil {
		return err
	}

	users := authpg.NewUserRepository(pool)
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)

	credentials, err := auth.NewCredentialService(users, hasher)
	if err != nil {
		return err
	}
	sessions, err := auth.NewSessionService(users, codec)
	if err != nil {
		return err
	}
	notifier := notify.NewLogSender(logger)
	accounts, err := auth.NewAccountService(users, hasher, registry, notifier, logger)
	if err != nil {
		return err
	}
	passwords, err := auth.NewPasswordService(users, hasher, notifier, logger)
	if err != nil {
		return err
	}

	obsServer := observability.NewServer(cfg.Observability.Addr, func() bool {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pool.Ping(pingCtx) == nil
	})

	handler, err := httpapi.NewHandler(logger, policy, codec, credentials, sessions, accounts, passwords, obsServer.Metrics())
	if err != nil {
		return err
	}
	apiServer := httpapi.NewServer(cfg.Server.Addr, handler.Router())

	obsErrCh, err := obsServer.Start()
	if err != nil {
		return err
	}
	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopServers(cfg, obsServer)
		return err
	}

	logger.Info("taskforge ready",
		"api_addr", apiServer.Addr(),
		"observability_addr", obsServer.Addr(),
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-apiErrCh:
		stopServers(cfg, obsServer)
		return oops.With("server", "api").Wrap(err)
	case err := <-obsErrCh:
		stopServers(cfg, apiServer)
		return oops.With("server", "observability").Wrap(err)
	}

	stopServers(cfg, obsServer, apiServer)
	return nil
}

// stoppable is implemented by both hosted servers.
type stoppable interface {
	Stop(ctx context.Context) error
}

// stopServers shuts down the given servers, tolerating nils, within the
// configured shutdown window.
func stopServers(cfg *config.Config, servers ...stoppable) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	for _, srv := range servers {
		if srv == nil {
			continue
		}
		if err := srv.Stop(ctx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}
}

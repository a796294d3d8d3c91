// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/taskforge/taskforge/internal/access"
	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/internal/observability"
)

// Handler holds the HTTP surface and its collaborators.
type Handler struct {
	logger      *slog.Logger
	policy      *access.Policy
	codec       auth.TokenCodec
	credentials *auth.CredentialService
	sessions    *auth.SessionService
	accounts    *auth.AccountService
	passwords   *auth.PasswordService
	metrics     *observability.Metrics
}

// NewHandler creates the HTTP handler. Metrics may be nil; everything
// else is required.
func NewHandler(
	logger *slog.Logger,
	policy *access.Policy,
	codec auth.TokenCodec,
	credentials *auth.CredentialService,
	sessions *auth.SessionService,
	accounts *auth.AccountService,
	passwords *auth.PasswordService,
	metrics *observability.Metrics,
) (*Handler, error) {
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	if policy == nil {
		return nil, oops.Errorf("access policy is required")
	}
	if codec == nil {
		return nil, oops.Errorf("token codec is required")
	}
	if credentials == nil {
		return nil, oops.Errorf("credential service is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session service is required")
	}
	if accounts == nil {
		return nil, oops.Errorf("account service is required")
	}
	if passwords == nil {
		return nil, oops.Errorf("password service is required")
	}
	return &Handler{
		logger:      logger,
		policy:      policy,
		codec:       codec,
		credentials: credentials,
		sessions:    sessions,
		accounts:    accounts,
		passwords:   passwords,
		metrics:     metrics,
	}, nil
}

// Router builds the chi router. The authorizer middleware runs on every
// route; per-route role requirements live in the policy, not here.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(h.authorize)

	r.Post("/api/auth/register", h.handleRegister)
	r.Post("/api/auth/login", h.handleLogin)
	r.Post("/api/auth/refresh", h.handleRefresh)
	r.Get("/api/auth/current", h.handleCurrent)
	r.Post("/api/auth/forgot-password", h.handleForgotPassword)
	r.Post("/api/auth/reset-password", h.handleResetPassword)
	r.Put("/api/auth/password", h.handleChangePassword)
	r.Put("/api/users/{id}/roles", h.handleAssignRoles)

	return r
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskforge/taskforge/internal/access"
	"github.com/taskforge/taskforge/internal/notify"
)

// AccountService handles registration, lookup and role assignment.
type AccountService struct {
	users    UserRepository
	hasher   PasswordHasher
	roles    *access.Registry
	notifier notify.Sender
	logger   *slog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(users UserRepository, hasher PasswordHasher, roles *access.Registry, notifier notify.Sender, logger *slog.Logger) (*AccountService, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if roles == nil {
		return nil, oops.Errorf("role registry is required")
	}
	if notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &AccountService{
		users:    users,
		hasher:   hasher,
		roles:    roles,
		notifier: notifier,
		logger:   logger,
	}, nil
}

// Register creates a new account. Empty roles default to USER; the
// first-login latch starts set so clients prompt for a password change.
func (s *AccountService) Register(ctx context.Context, email, fullName, password string, roleNames []string) (*Principal, error) {
	if len(roleNames) == 0 {
		roleNames = []string{access.RoleUser}
	}
	roleSet, err := s.roles.ParseSet(roleNames)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user, err := NewUser(email, fullName, hash, roleSet.Names())
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, oops.Code("USER_DUPLICATE").
				Errorf("an account with that email already exists")
		}
		return nil, oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	// Best-effort: the account exists either way and the message carries
	// no credentials.
	if err := s.notifier.Send(ctx, user.Email, notify.TemplateWelcome, map[string]string{
		"full_name": user.FullName,
	}); err != nil {
		s.logger.WarnContext(ctx, "welcome notification failed",
			slog.String("user_id", user.ID.String()),
			slog.Any("error", err))
	}

	principal := user.Principal()
	return &principal, nil
}

// Current resolves the live account behind an authenticated identity.
func (s *AccountService) Current(ctx context.Context, email string) (*Principal, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("PRINCIPAL_NOT_FOUND").Errorf("no user with that email")
		}
		return nil, oops.Code("ACCOUNT_LOOKUP_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	principal := user.Principal()
	return &principal, nil
}

// AssignRoles replaces a user's role set. Existing tokens keep their old
// role claims; the change takes effect on the next issuance.
func (s *AccountService) AssignRoles(ctx context.Context, id ulid.ULID, roleNames []string) error {
	roleSet, err := s.roles.ParseSet(roleNames)
	if err != nil {
		return err
	}

	if err := s.users.UpdateRoles(ctx, id, roleSet.Names()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("PRINCIPAL_NOT_FOUND").
				With("user_id", id.String()).
				Errorf("user does not exist")
		}
		return oops.Code("ROLE_ASSIGN_FAILED").
			With("operation", "update roles").
			With("user_id", id.String()).
			Wrap(err)
	}

	return nil
}

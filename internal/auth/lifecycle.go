// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/samber/oops"

	"github.com/taskforge/taskforge/internal/notify"
)

// PasswordService handles the reset-code lifecycle and password changes.
type PasswordService struct {
	users    UserRepository
	hasher   PasswordHasher
	notifier notify.Sender
	logger   *slog.Logger
	now      func() time.Time
}

// NewPasswordService creates a new PasswordService.
func NewPasswordService(users UserRepository, hasher PasswordHasher, notifier notify.Sender, logger *slog.Logger) (*PasswordService, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &PasswordService{
		users:    users,
		hasher:   hasher,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// RequestReset stores a fresh reset ticket on the user and notifies them.
// A repeated request overwrites the previous ticket. Notification is
// best-effort: a send failure is logged, never returned, because the
// ticket is already stored and a retry will re-send.
func (s *PasswordService) RequestReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("PRINCIPAL_NOT_FOUND").Errorf("no user with that email")
		}
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	if user.HasResetPending() {
		s.logger.DebugContext(ctx, "replacing pending reset ticket",
			slog.String("user_id", user.ID.String()))
	}

	code, err := GenerateResetCode()
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset code").
			Wrap(err)
	}

	expiry := s.now().Add(ResetCodeExpiry)
	if err := s.users.SetResetCode(ctx, user.ID, code, expiry); err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "store reset code").
			Wrap(err)
	}

	if err := s.notifier.Send(ctx, user.Email, notify.TemplatePasswordReset, map[string]string{
		"code":           code,
		"expiry_minutes": strconv.Itoa(int(ResetCodeExpiry.Minutes())),
	}); err != nil {
		s.logger.WarnContext(ctx, "reset notification failed",
			slog.String("user_id", user.ID.String()),
			slog.Any("error", err))
	}

	return nil
}

// ConfirmReset validates a presented code, rehashes the password and
// clears the ticket. Unknown email, wrong code and expired code all
// fail with the same error so callers learn nothing about accounts.
func (s *PasswordService) ConfirmReset(ctx context.Context, email, code, newPassword string) error {
	if newPassword == "" {
		return ErrEmptyPassword
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("RESET_CODE_INVALID").Errorf("invalid or expired reset code")
		}
		return oops.Code("RESET_CONFIRM_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	if !VerifyResetCode(code, user.ResetCode, user.ResetCodeExpiry, s.now()) {
		return oops.Code("RESET_CODE_INVALID").Errorf("invalid or expired reset code")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_CONFIRM_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return oops.Code("RESET_CONFIRM_FAILED").
			With("operation", "update password").
			Wrap(err)
	}

	// Single use: the ticket must not survive a successful reset.
	if err := s.users.ClearResetCode(ctx, user.ID); err != nil {
		return oops.Code("RESET_CONFIRM_FAILED").
			With("operation", "clear reset code").
			Wrap(err)
	}

	return nil
}

// ChangePassword rehashes and stores a new password for an authenticated
// principal, clearing the first-login latch. The current password is not
// re-verified; possession of a valid access token is the authority here.
func (s *PasswordService) ChangePassword(ctx context.Context, principal Principal, newPassword string) error {
	if newPassword == "" {
		return ErrEmptyPassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("PASSWORD_CHANGE_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := s.users.UpdatePassword(ctx, principal.ID, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("PRINCIPAL_NOT_FOUND").Errorf("user no longer exists")
		}
		return oops.Code("PASSWORD_CHANGE_FAILED").
			With("operation", "update password").
			Wrap(err)
	}

	return nil
}

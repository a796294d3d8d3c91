// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/taskforge/taskforge/internal/token"
)

// TokenCodec signs and verifies session tokens. Implemented by
// token.Codec; abstracted for tests.
type TokenCodec interface {
	Issue(subject string, roles []string, purpose token.Purpose) (string, error)
	Parse(raw string) (*token.Claims, error)
}

// Session is an issued token pair with the identity it was minted for.
// FirstLogin is advisory: clients use it to force a password change, the
// server never withholds tokens because of it.
type Session struct {
	AccessToken  string
	RefreshToken string
	FirstLogin   bool
	Principal    Principal
}

// SessionService issues access/refresh token pairs.
type SessionService struct {
	users UserRepository
	codec TokenCodec
}

// NewSessionService creates a new SessionService.
func NewSessionService(users UserRepository, codec TokenCodec) (*SessionService, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if codec == nil {
		return nil, oops.Errorf("token codec is required")
	}
	return &SessionService{
		users: users,
		codec: codec,
	}, nil
}

// Create issues a fresh token pair for a verified principal. Role claims
// snapshot the principal as passed; later role changes appear only in
// tokens issued after them.
func (s *SessionService) Create(ctx context.Context, principal Principal) (*Session, error) {
	access, err := s.codec.Issue(principal.Email, principal.Roles, token.PurposeAccess)
	if err != nil {
		return nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "issue access token").
			Wrap(err)
	}

	refresh, err := s.codec.Issue(principal.Email, principal.Roles, token.PurposeRefresh)
	if err != nil {
		return nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "issue refresh token").
			Wrap(err)
	}

	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		FirstLogin:   principal.FirstLogin,
		Principal:    principal,
	}, nil
}

// Refresh validates a presented token and issues a new pair. The live
// user row is re-fetched so the new claims carry current roles, not the
// ones frozen in the old token.
func (s *SessionService) Refresh(ctx context.Context, raw string) (*Session, error) {
	if raw == "" {
		return nil, oops.Code("TOKEN_MISSING").Errorf("refresh token cannot be empty")
	}

	claims, err := s.codec.Parse(raw)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("PRINCIPAL_NOT_FOUND").
				Errorf("token subject no longer resolves to a user")
		}
		return nil, oops.Code("SESSION_REFRESH_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	return s.Create(ctx, user.Principal())
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Field validation constraints.
const (
	MaxEmailLength    = 40
	MaxFullNameLength = 40
)

// emailRegex is a pragmatic format check; the store's unique constraint
// is the real arbiter of identity.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// User is a stored account. Roles holds validated role names; ResetCode
// and ResetCodeExpiry are set only while a password reset is pending.
type User struct {
	ID              ulid.ULID
	Email           string
	FullName        string
	PasswordHash    string
	Roles           []string
	FirstLogin      bool
	ResetCode       *string
	ResetCodeExpiry *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Principal is the immutable identity snapshot carried through request
// handling. It is taken at verification or token-parse time and never
// refreshed mid-request.
type Principal struct {
	ID         ulid.ULID
	Email      string
	FullName   string
	Roles      []string
	FirstLogin bool
}

// Principal returns the user's identity snapshot.
func (u *User) Principal() Principal {
	roles := make([]string, len(u.Roles))
	copy(roles, u.Roles)
	return Principal{
		ID:         u.ID,
		Email:      u.Email,
		FullName:   u.FullName,
		Roles:      roles,
		FirstLogin: u.FirstLogin,
	}
}

// HasResetPending reports whether a reset ticket is stored on the row.
func (u *User) HasResetPending() bool {
	return u.ResetCode != nil && u.ResetCodeExpiry != nil
}

// NewUser creates a User with validated fields. New accounts start with
// the first-login latch set; it is cleared only by a password update.
func NewUser(email, fullName, passwordHash string, roles []string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if fullName == "" || len(fullName) > MaxFullNameLength {
		return nil, oops.Code("AUTH_INVALID_NAME").
			With("max", MaxFullNameLength).
			Errorf("full name must be 1-%d characters", MaxFullNameLength)
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	if len(roles) == 0 {
		return nil, oops.Code("ROLE_UNKNOWN").Errorf("user requires at least one role")
	}

	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
		Roles:        roles,
		FirstLogin:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ValidateEmail validates an email address format and length.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code("AUTH_INVALID_EMAIL").
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	if !emailRegex.MatchString(email) {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("malformed email address")
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns ErrDuplicate if the email is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by email.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Update updates an existing user row.
	Update(ctx context.Context, user *User) error

	// UpdatePassword replaces the password hash and clears the
	// first-login latch.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// SetResetCode stores a pending reset ticket on the user row.
	SetResetCode(ctx context.Context, id ulid.ULID, code string, expiry time.Time) error

	// ClearResetCode removes any pending reset ticket.
	ClearResetCode(ctx context.Context, id ulid.ULID) error

	// UpdateRoles replaces the user's role set.
	UpdateRoles(ctx context.Context, id ulid.ULID, roles []string) error

	// CountWithRole counts users holding the given role.
	CountWithRole(ctx context.Context, role string) (int64, error)
}

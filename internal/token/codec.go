// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// Purpose tags a token as usable for request authentication or for
// obtaining a fresh pair.
type Purpose string

const (
	PurposeAccess  Purpose = "access"
	PurposeRefresh Purpose = "refresh"
)

// minSecretLen guards against trivially brute-forceable HMAC keys.
const minSecretLen = 32

// Claims is the decoded token payload. Roles and Purpose are the
// service-specific claims alongside the registered set.
type Claims struct {
	jwt.RegisteredClaims
	Roles   []string `json:"roles"`
	Purpose Purpose  `json:"purpose"`
}

// Codec signs and verifies tokens with a single symmetric secret.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewCodec validates the secret and lifetimes and returns a ready codec.
func NewCodec(secret []byte, accessTTL, refreshTTL time.Duration) (*Codec, error) {
	if len(secret) < minSecretLen {
		return nil, oops.In("token").
			Code("INVALID_CONFIG").
			With("min_bytes", minSecretLen).
			Errorf("signing secret too short")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, oops.In("token").
			Code("INVALID_CONFIG").
			Errorf("token lifetimes must be positive")
	}
	return &Codec{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// Issue signs a token for the subject with its role snapshot. The
// lifetime is chosen by purpose.
func (c *Codec) Issue(subject string, roles []string, purpose Purpose) (string, error) {
	if subject == "" {
		return "", oops.In("token").
			Code("TOKEN_MALFORMED").
			Errorf("empty subject")
	}
	if len(roles) == 0 {
		return "", oops.In("token").
			Code("TOKEN_MALFORMED").
			With("subject", subject).
			Errorf("token requires at least one role")
	}

	var ttl time.Duration
	switch purpose {
	case PurposeAccess:
		ttl = c.accessTTL
	case PurposeRefresh:
		ttl = c.refreshTTL
	default:
		return "", oops.In("token").
			Code("TOKEN_MALFORMED").
			With("purpose", string(purpose)).
			Errorf("unknown token purpose")
	}

	issued := c.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		},
		Roles:   roles,
		Purpose: purpose,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", oops.In("token").
			Code("TOKEN_MALFORMED").
			With("subject", subject).
			Wrap(err)
	}
	return signed, nil
}

// Parse verifies the signature and lifetime and returns the claims.
func (c *Codec) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, wrapParseError(err)
	}

	if claims.Subject == "" || len(claims.Roles) == 0 {
		return nil, oops.In("token").
			Code("TOKEN_MALFORMED").
			Errorf("token carries no principal claims")
	}
	switch claims.Purpose {
	case PurposeAccess, PurposeRefresh:
	default:
		return nil, oops.In("token").
			Code("TOKEN_MALFORMED").
			With("purpose", string(claims.Purpose)).
			Errorf("unknown token purpose")
	}
	return claims, nil
}

// wrapParseError collapses library errors into the three parse codes.
// Expiry is checked first: an expired token with a valid signature must
// report TOKEN_EXPIRED, not a generic failure.
func wrapParseError(err error) error {
	code := "TOKEN_MALFORMED"
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		code = "TOKEN_EXPIRED"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		code = "TOKEN_SIGNATURE_INVALID"
	}
	return oops.In("token").Code(code).Wrap(err)
}

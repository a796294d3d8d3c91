// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/samber/oops"
)

// Reset ticket configuration.
const (
	ResetCodeDigits = 6
	ResetCodeExpiry = 15 * time.Minute
)

// resetCodeSpace is the number of distinct codes (10^ResetCodeDigits).
var resetCodeSpace = big.NewInt(1_000_000)

// GenerateResetCode creates a uniform random 6-digit code, zero-padded.
// Codes are short-lived and single-use; entropy comes from crypto/rand.
func GenerateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, resetCodeSpace)
	if err != nil {
		return "", oops.Code("RESET_CODE_GENERATE_FAILED").Wrap(err)
	}
	return fmt.Sprintf("%0*d", ResetCodeDigits, n), nil
}

// VerifyResetCode checks a presented code against the stored ticket.
// The match is exact and case-sensitive, compared in constant time, and
// valid only while now <= expiry.
func VerifyResetCode(presented string, stored *string, expiry *time.Time, now time.Time) bool {
	if stored == nil || expiry == nil || presented == "" {
		return false
	}
	if now.After(*expiry) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(*stored)) == 1
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

// Package auth provides authentication primitives for TaskForge.
//
// # Domain Types
//
// User is the stored account row; Principal is the immutable snapshot of
// an authenticated identity taken at verification or token-parse time.
// Users should be created with NewUser, which validates the email, name
// and role set. Direct struct initialization bypasses validation and may
// create invalid state.
//
// # Services
//
// Service types coordinate domain operations:
//   - CredentialService - credential verification with uniform failures
//   - SessionService - access/refresh token pair issuance
//   - PasswordService - reset-code lifecycle and password changes
//   - AccountService - registration, lookup and role assignment
//
// Services are created with New*Service constructors that validate
// dependencies.
package auth

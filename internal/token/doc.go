// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

// Package token implements the HS256 JWS codec used for access and
// refresh tokens. A Codec is built once at startup from the process-wide
// signing secret and the per-purpose lifetimes; issuing and parsing are
// pure computations safe for unbounded concurrent use.
//
// Claims snapshot the principal at issuance: subject, role names, purpose
// and the issued/expiry instants. A token is valid iff its signature
// verifies and it has not expired; there is no revocation state. Parse
// failures surface only the codes TOKEN_SIGNATURE_INVALID, TOKEN_EXPIRED
// and TOKEN_MALFORMED, never raw library errors.
package token

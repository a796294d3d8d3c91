// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

// Package access provides request authorization for TaskForge.
//
// Authorization is a pure function of three inputs: the HTTP method, the
// request path, and the caller's role set. A Policy is compiled once at
// startup from a declarative rule table and evaluated on every request
// before business logic runs. There is no per-request state.
//
// Rules match paths with '/'-separated patterns: '*' matches exactly one
// segment, '**' matches any suffix. When several rules match, the most
// specific one wins (more literal segments first, then longer literal
// prefix). Requests matching no rule require a valid token but no specific
// role. A separate public allowlist admits anonymous requests.
package access

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

// Package httpapi exposes the authentication service over HTTP.
//
// The router applies a single authorizer middleware to every request:
// public routes pass through untouched, everything else requires a valid
// bearer token whose roles satisfy the route policy. Handlers translate
// domain error codes to HTTP statuses; response bodies never leak
// internal details.
package httpapi

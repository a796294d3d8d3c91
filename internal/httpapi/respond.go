// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/taskforge/taskforge/pkg/errutil"
)

// errorResponse is the uniform error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusForCode maps domain error codes to HTTP statuses. Codes without
// a mapping are treated as internal failures.
func statusForCode(code string) int {
	switch code {
	case "AUTH_INVALID_CREDENTIALS",
		"TOKEN_MISSING",
		"TOKEN_MALFORMED",
		"TOKEN_EXPIRED",
		"TOKEN_SIGNATURE_INVALID":
		return http.StatusUnauthorized
	case "ACCESS_DENIED":
		return http.StatusForbidden
	case "PRINCIPAL_NOT_FOUND", "USER_NOT_FOUND":
		return http.StatusNotFound
	case "RESET_CODE_INVALID",
		"ROLE_UNKNOWN",
		"AUTH_EMPTY_PASSWORD",
		"AUTH_INVALID_EMAIL",
		"AUTH_INVALID_NAME",
		"INVALID_REQUEST":
		return http.StatusBadRequest
	case "USER_DUPLICATE":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// tokenMessages carries fixed bodies for token failures. Parse errors wrap
// the underlying library error, which must not reach the client.
var tokenMessages = map[string]string{
	"TOKEN_MISSING":           "authentication token missing",
	"TOKEN_MALFORMED":         "token is malformed",
	"TOKEN_EXPIRED":           "token has expired",
	"TOKEN_SIGNATURE_INVALID": "token signature is invalid",
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body != nil {
		//nolint:errcheck // response write error means the client is gone
		json.NewEncoder(w).Encode(body)
	}
}

// writeError renders err as an HTTP error response. Internal failures
// are logged with their full context and masked in the body.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := errutil.Code(err)
	status := statusForCode(code)

	message := err.Error()
	if fixed, ok := tokenMessages[code]; ok {
		message = fixed
	}
	if status == http.StatusInternalServerError {
		errutil.LogError(logger, "request failed", err)
		code = "INTERNAL"
		message = "internal error"
	}

	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

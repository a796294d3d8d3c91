// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/taskforge/taskforge/internal/access"
	"github.com/taskforge/taskforge/internal/token"
	"github.com/taskforge/taskforge/pkg/errutil"
)

type ctxKey int

const claimsKey ctxKey = 0

// ClaimsFrom returns the verified token claims for the request, if the
// authorizer admitted it with a bearer token. Public routes carry none.
func ClaimsFrom(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*token.Claims)
	return claims, ok
}

// bearerToken extracts the token from the Authorization header. Returns
// empty string when the header is absent or not a bearer scheme.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, raw, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(raw)
}

// authorize gates every request through the route policy. Public routes
// pass anonymously; all other routes require a valid bearer token whose
// roles satisfy the matched rule.
func (h *Handler) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.policy.IsPublic(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		raw := bearerToken(r)
		if raw == "" {
			writeError(w, h.logger, oops.Code("TOKEN_MISSING").
				Errorf("authorization required"))
			return
		}

		claims, err := h.codec.Parse(raw)
		if err != nil {
			if h.metrics != nil {
				h.metrics.TokenFailuresTotal.WithLabelValues(errutil.Code(err)).Inc()
			}
			writeError(w, h.logger, err)
			return
		}

		roles := access.NewRoleSet(claims.Roles...)
		if err := h.policy.Authorize(r.Method, r.URL.Path, roles); err != nil {
			if h.metrics != nil {
				h.metrics.AccessDeniedTotal.WithLabelValues(r.Method).Inc()
			}
			writeError(w, h.logger, err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// logRequests emits one structured log line per request.
func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		h.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/internal/observability"
	"github.com/taskforge/taskforge/pkg/errutil"
)

// userView is the external representation of an account. The password
// hash and reset ticket never leave the service.
type userView struct {
	ID         string   `json:"id"`
	Email      string   `json:"email"`
	FullName   string   `json:"fullName"`
	Roles      []string `json:"roles"`
	FirstLogin bool     `json:"firstLogin"`
}

func viewOf(p auth.Principal) userView {
	return userView{
		ID:         p.ID.String(),
		Email:      p.Email,
		FullName:   p.FullName,
		Roles:      p.Roles,
		FirstLogin: p.FirstLogin,
	}
}

type sessionResponse struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	FirstLogin   bool     `json:"firstLogin"`
	User         userView `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return oops.Code("INVALID_REQUEST").Wrapf(err, "malformed request body")
	}
	return nil
}

type registerRequest struct {
	Email    string   `json:"email"`
	FullName string   `json:"fullName"`
	Password string   `json:"password"`
	Roles    []string `json:"roles,omitempty"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	principal, err := h.accounts.Register(r.Context(), req.Email, req.FullName, req.Password, req.Roles)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, viewOf(*principal))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	principal, err := h.credentials.Verify(r.Context(), req.Email, req.Password)
	if err != nil {
		h.recordLogin(loginOutcome(err))
		writeError(w, h.logger, err)
		return
	}

	session, err := h.sessions.Create(r.Context(), *principal)
	if err != nil {
		h.recordLogin(observability.OutcomeError)
		writeError(w, h.logger, err)
		return
	}

	h.recordLogin(observability.OutcomeSuccess)
	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		FirstLogin:   session.FirstLogin,
		User:         viewOf(session.Principal),
	})
}

func (h *Handler) recordLogin(outcome string) {
	if h.metrics != nil {
		h.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}

func loginOutcome(err error) string {
	if errutil.Code(err) == "AUTH_INVALID_CREDENTIALS" {
		return observability.OutcomeInvalid
	}
	return observability.OutcomeError
}

// handleRefresh exchanges a refresh token, presented as a bearer, for a
// fresh pair. The route is public; the token itself is the credential.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Refresh(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		FirstLogin:   session.FirstLogin,
		User:         viewOf(session.Principal),
	})
}

func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		writeError(w, h.logger, oops.Code("TOKEN_MISSING").Errorf("authorization required"))
		return
	}

	principal, err := h.accounts.Current(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, viewOf(*principal))
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.passwords.RequestReset(r.Context(), req.Email); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if h.metrics != nil {
		h.metrics.PasswordResetsTotal.WithLabelValues("requested").Inc()
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "reset code sent"})
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.passwords.ConfirmReset(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if h.metrics != nil {
		h.metrics.PasswordResetsTotal.WithLabelValues("confirmed").Inc()
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "password updated"})
}

type changePasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		writeError(w, h.logger, oops.Code("TOKEN_MISSING").Errorf("authorization required"))
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	principal, err := h.accounts.Current(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.passwords.ChangePassword(r.Context(), *principal, req.NewPassword); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type assignRolesRequest struct {
	Roles []string `json:"roles"`
}

func (h *Handler) handleAssignRoles(w http.ResponseWriter, r *http.Request) {
	id, err := ulid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, oops.Code("INVALID_REQUEST").Wrapf(err, "malformed user id"))
		return
	}

	var req assignRolesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.accounts.AssignRoles(r.Context(), id, req.Roles); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

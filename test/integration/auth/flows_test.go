// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

//go:build integration

package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/taskforge/taskforge/internal/access"
)

type sessionBody struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	FirstLogin   bool   `json:"firstLogin"`
	User         struct {
		ID    string   `json:"id"`
		Email string   `json:"email"`
		Roles []string `json:"roles"`
	} `json:"user"`
}

func doJSON(method, path string, body any, bearer string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
	}

	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	env.Router.ServeHTTP(rec, req)
	return rec
}

func register(email, password string) {
	rec := doJSON(http.MethodPost, "/api/auth/register", map[string]string{
		"email":    email,
		"fullName": "Integration User",
		"password": password,
	}, "")
	Expect(rec.Code).To(Equal(http.StatusCreated))
}

func login(email, password string) (sessionBody, int) {
	rec := doJSON(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")

	var body sessionBody
	if rec.Code == http.StatusOK {
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
	}
	return body, rec.Code
}

var _ = Describe("Account lifecycle", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupUsers(ctx, env.pool)
	})

	It("registers, logs in and clears the first-login latch on password change", func() {
		register("alice@example.com", "initial-pass")

		session, code := login("alice@example.com", "initial-pass")
		Expect(code).To(Equal(http.StatusOK))
		Expect(session.AccessToken).NotTo(BeEmpty())
		Expect(session.RefreshToken).NotTo(BeEmpty())
		Expect(session.FirstLogin).To(BeTrue())
		Expect(session.User.Roles).To(Equal([]string{access.RoleUser}))

		rec := doJSON(http.MethodPut, "/api/auth/password", map[string]string{
			"newPassword": "chosen-pass",
		}, session.AccessToken)
		Expect(rec.Code).To(Equal(http.StatusNoContent))

		_, code = login("alice@example.com", "initial-pass")
		Expect(code).To(Equal(http.StatusUnauthorized))

		session, code = login("alice@example.com", "chosen-pass")
		Expect(code).To(Equal(http.StatusOK))
		Expect(session.FirstLogin).To(BeFalse())
	})

	It("rejects a duplicate registration regardless of email case", func() {
		register("bob@example.com", "some-pass")

		rec := doJSON(http.MethodPost, "/api/auth/register", map[string]string{
			"email":    "BOB@example.com",
			"fullName": "Impostor",
			"password": "other-pass",
		}, "")
		Expect(rec.Code).To(Equal(http.StatusConflict))
	})
})

var _ = Describe("Password reset", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupUsers(ctx, env.pool)
		register("carol@example.com", "old-pass")
	})

	requestCode := func() string {
		rec := doJSON(http.MethodPost, "/api/auth/forgot-password", map[string]string{
			"email": "carol@example.com",
		}, "")
		Expect(rec.Code).To(Equal(http.StatusOK))

		user, err := env.Users.GetByEmail(ctx, "carol@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(user.ResetCode).NotTo(BeNil())
		Expect(*user.ResetCode).To(HaveLen(6))
		return *user.ResetCode
	}

	It("runs the full request, confirm and re-login flow", func() {
		code := requestCode()

		rec := doJSON(http.MethodPost, "/api/auth/reset-password", map[string]string{
			"email":       "carol@example.com",
			"code":        code,
			"newPassword": "fresh-pass",
		}, "")
		Expect(rec.Code).To(Equal(http.StatusOK))

		_, status := login("carol@example.com", "old-pass")
		Expect(status).To(Equal(http.StatusUnauthorized))

		_, status = login("carol@example.com", "fresh-pass")
		Expect(status).To(Equal(http.StatusOK))
	})

	It("accepts a code only once", func() {
		code := requestCode()

		rec := doJSON(http.MethodPost, "/api/auth/reset-password", map[string]string{
			"email":       "carol@example.com",
			"code":        code,
			"newPassword": "fresh-pass",
		}, "")
		Expect(rec.Code).To(Equal(http.StatusOK))

		rec = doJSON(http.MethodPost, "/api/auth/reset-password", map[string]string{
			"email":       "carol@example.com",
			"code":        code,
			"newPassword": "another-pass",
		}, "")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("rejects an expired code", func() {
		code := requestCode()

		_, err := env.pool.Exec(ctx,
			"UPDATE users SET reset_code_expiry = $1 WHERE LOWER(email) = LOWER($2)",
			time.Now().Add(-time.Minute), "carol@example.com")
		Expect(err).NotTo(HaveOccurred())

		rec := doJSON(http.MethodPost, "/api/auth/reset-password", map[string]string{
			"email":       "carol@example.com",
			"code":        code,
			"newPassword": "fresh-pass",
		}, "")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("rejects a wrong code", func() {
		code := requestCode()
		wrong := "000000"
		if code == wrong {
			wrong = "000001"
		}

		rec := doJSON(http.MethodPost, "/api/auth/reset-password", map[string]string{
			"email":       "carol@example.com",
			"code":        wrong,
			"newPassword": "fresh-pass",
		}, "")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})
})

var _ = Describe("Sessions and authorization", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupUsers(ctx, env.pool)
	})

	It("refreshes a session and picks up role changes", func() {
		register("dave@example.com", "dave-pass")
		register("root@example.com", "root-pass")

		session, code := login("dave@example.com", "dave-pass")
		Expect(code).To(Equal(http.StatusOK))
		Expect(session.User.Roles).To(Equal([]string{access.RoleUser}))

		// Promote the admin account directly; someone has to be first
		rootUser, err := env.Users.GetByEmail(ctx, "root@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Users.UpdateRoles(ctx, rootUser.ID, []string{access.RoleAdmin, access.RoleUser})).To(Succeed())

		adminSession, code := login("root@example.com", "root-pass")
		Expect(code).To(Equal(http.StatusOK))

		daveUser, err := env.Users.GetByEmail(ctx, "dave@example.com")
		Expect(err).NotTo(HaveOccurred())

		rec := doJSON(http.MethodPut, "/api/users/"+daveUser.ID.String()+"/roles", map[string]any{
			"roles": []string{"USER", "ADMIN"},
		}, adminSession.AccessToken)
		Expect(rec.Code).To(Equal(http.StatusNoContent))

		// Old token still carries the old claims; refresh picks up the new roles
		refreshed := doJSON(http.MethodPost, "/api/auth/refresh", nil, session.RefreshToken)
		Expect(refreshed.Code).To(Equal(http.StatusOK))

		var body sessionBody
		Expect(json.Unmarshal(refreshed.Body.Bytes(), &body)).To(Succeed())
		Expect(body.User.Roles).To(ConsistOf(access.RoleAdmin, access.RoleUser))
	})

	It("denies admin routes to regular users", func() {
		register("eve@example.com", "eve-pass")

		session, code := login("eve@example.com", "eve-pass")
		Expect(code).To(Equal(http.StatusOK))

		rec := doJSON(http.MethodGet, "/api/admin/health", nil, session.AccessToken)
		Expect(rec.Code).To(Equal(http.StatusForbidden))
	})

	It("returns not found when the refresh subject was deleted", func() {
		register("frank@example.com", "frank-pass")

		session, code := login("frank@example.com", "frank-pass")
		Expect(code).To(Equal(http.StatusOK))

		cleanupUsers(ctx, env.pool)

		rec := doJSON(http.MethodPost, "/api/auth/refresh", nil, session.RefreshToken)
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})
})

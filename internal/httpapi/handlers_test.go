// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package httpapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskforge/taskforge/internal/access"
	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/internal/auth/mocks"
	"github.com/taskforge/taskforge/internal/httpapi"
	"github.com/taskforge/taskforge/internal/notify"
	"github.com/taskforge/taskforge/internal/token"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type testAPI struct {
	users  *mocks.MockUserRepository
	codec  *token.Codec
	router http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	codec, err := token.NewCodec(testSecret, 15*time.Minute, time.Hour)
	require.NoError(t, err)

	registry := access.NewRegistry()
	policy, err := access.NewPolicy(registry,
		[]access.Rule{
			{Method: "*", Pattern: "/api/admin/**", Roles: []string{"ADMIN"}},
			{Method: "PUT", Pattern: "/api/users/*/roles", Roles: []string{"ADMIN"}},
		},
		[]access.PublicRoute{
			{Method: "POST", Pattern: "/api/auth/register"},
			{Method: "POST", Pattern: "/api/auth/login"},
			{Method: "POST", Pattern: "/api/auth/refresh"},
			{Method: "POST", Pattern: "/api/auth/forgot-password"},
			{Method: "POST", Pattern: "/api/auth/reset-password"},
		})
	require.NoError(t, err)

	users := mocks.NewMockUserRepository(t)
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)

	credentials, err := auth.NewCredentialService(users, hasher)
	require.NoError(t, err)
	sessions, err := auth.NewSessionService(users, codec)
	require.NoError(t, err)
	notifier := notify.NewLogSender(logger)
	accounts, err := auth.NewAccountService(users, hasher, registry, notifier, logger)
	require.NoError(t, err)
	passwords, err := auth.NewPasswordService(users, hasher, notifier, logger)
	require.NoError(t, err)

	handler, err := httpapi.NewHandler(logger, policy, codec, credentials, sessions, accounts, passwords, nil)
	require.NoError(t, err)

	return &testAPI{
		users:  users,
		codec:  codec,
		router: handler.Router(),
	}
}

// do performs a request against the router. An empty bearer omits the
// Authorization header.
func (a *testAPI) do(t *testing.T, method, path string, body any, bearer string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) accessToken(t *testing.T, email string, roles ...string) string {
	t.Helper()
	raw, err := a.codec.Issue(email, roles, token.PurposeAccess)
	require.NoError(t, err)
	return raw
}

func testUser(t *testing.T, email, password string, roles ...string) *auth.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user, err := auth.NewUser(email, "Test User", string(hash), roles)
	require.NoError(t, err)
	return user
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

type sessionBody struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	FirstLogin   bool   `json:"firstLogin"`
	User         struct {
		ID         string   `json:"id"`
		Email      string   `json:"email"`
		FullName   string   `json:"fullName"`
		Roles      []string `json:"roles"`
		FirstLogin bool     `json:"firstLogin"`
	} `json:"user"`
}

func TestLogin(t *testing.T) {
	t.Run("valid credentials return token pair", func(t *testing.T) {
		api := newTestAPI(t)
		user := testUser(t, "alice@example.com", "hunter2!", access.RoleUser)
		api.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(user, nil)

		rec := api.do(t, http.MethodPost, "/api/auth/login", map[string]string{
			"email":    "alice@example.com",
			"password": "hunter2!",
		}, "")

		require.Equal(t, http.StatusOK, rec.Code)

		var body sessionBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body.AccessToken)
		assert.NotEmpty(t, body.RefreshToken)
		assert.NotEqual(t, body.AccessToken, body.RefreshToken)
		assert.True(t, body.FirstLogin)
		assert.Equal(t, "alice@example.com", body.User.Email)
		assert.Equal(t, []string{access.RoleUser}, body.User.Roles)
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		api := newTestAPI(t)
		user := testUser(t, "alice@example.com", "hunter2!", access.RoleUser)
		api.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(user, nil)

		rec := api.do(t, http.MethodPost, "/api/auth/login", map[string]string{
			"email":    "alice@example.com",
			"password": "wrong",
		}, "")

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "AUTH_INVALID_CREDENTIALS", decodeError(t, rec).Code)
	})

	t.Run("unknown email gets the same response as wrong password", func(t *testing.T) {
		api := newTestAPI(t)
		api.users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, auth.ErrNotFound)

		rec := api.do(t, http.MethodPost, "/api/auth/login", map[string]string{
			"email":    "ghost@example.com",
			"password": "whatever",
		}, "")

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "AUTH_INVALID_CREDENTIALS", decodeError(t, rec).Code)
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		api := newTestAPI(t)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		api.router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_REQUEST", decodeError(t, rec).Code)
	})
}

func TestRegister(t *testing.T) {
	t.Run("creates account with default role", func(t *testing.T) {
		api := newTestAPI(t)
		api.users.On("Create", mock.Anything, mock.AnythingOfType("*auth.User")).Return(nil)

		rec := api.do(t, http.MethodPost, "/api/auth/register", map[string]string{
			"email":    "bob@example.com",
			"fullName": "Bob Example",
			"password": "sup3rsecret",
		}, "")

		require.Equal(t, http.StatusCreated, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body["id"])
		assert.Equal(t, "bob@example.com", body["email"])
		assert.Equal(t, []any{access.RoleUser}, body["roles"])
		assert.Equal(t, true, body["firstLogin"])
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		api := newTestAPI(t)
		api.users.On("Create", mock.Anything, mock.AnythingOfType("*auth.User")).Return(auth.ErrDuplicate)

		rec := api.do(t, http.MethodPost, "/api/auth/register", map[string]string{
			"email":    "bob@example.com",
			"fullName": "Bob Example",
			"password": "sup3rsecret",
		}, "")

		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "USER_DUPLICATE", decodeError(t, rec).Code)
	})

	t.Run("invalid email is rejected before the store", func(t *testing.T) {
		api := newTestAPI(t)

		rec := api.do(t, http.MethodPost, "/api/auth/register", map[string]string{
			"email":    "not-an-email",
			"fullName": "Bob Example",
			"password": "sup3rsecret",
		}, "")

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "AUTH_INVALID_EMAIL", decodeError(t, rec).Code)
	})
}

func TestRefresh(t *testing.T) {
	t.Run("valid refresh token issues a fresh pair with live roles", func(t *testing.T) {
		api := newTestAPI(t)
		user := testUser(t, "alice@example.com", "hunter2!", access.RoleUser, access.RoleAdmin)
		api.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(user, nil)

		refresh, err := api.codec.Issue("alice@example.com", []string{access.RoleUser}, token.PurposeRefresh)
		require.NoError(t, err)

		rec := api.do(t, http.MethodPost, "/api/auth/refresh", nil, refresh)

		require.Equal(t, http.StatusOK, rec.Code)

		var body sessionBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body.AccessToken)
		// New claims carry the user's current roles, not the token's
		assert.Equal(t, []string{access.RoleUser, access.RoleAdmin}, body.User.Roles)
	})

	t.Run("missing token is unauthorized", func(t *testing.T) {
		api := newTestAPI(t)

		rec := api.do(t, http.MethodPost, "/api/auth/refresh", nil, "")

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "TOKEN_MISSING", decodeError(t, rec).Code)
	})

	t.Run("garbage token is unauthorized", func(t *testing.T) {
		api := newTestAPI(t)

		rec := api.do(t, http.MethodPost, "/api/auth/refresh", nil, "not.a.token")

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, "TOKEN_MALFORMED", body.Code)
		assert.Equal(t, "token is malformed", body.Message)
	})

	t.Run("deleted principal is not found", func(t *testing.T) {
		api := newTestAPI(t)
		api.users.On("GetByEmail", mock.Anything, "gone@example.com").Return(nil, auth.ErrNotFound)

		refresh, err := api.codec.Issue("gone@example.com", []string{access.RoleUser}, token.PurposeRefresh)
		require.NoError(t, err)

		rec := api.do(t, http.MethodPost, "/api/auth/refresh", nil, refresh)

		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "PRINCIPAL_NOT_FOUND", decodeError(t, rec).Code)
	})
}

func TestCurrent(t *testing.T) {
	t.Run("returns the live principal for the token subject", func(t *testing.T) {
		api := newTestAPI(t)
		user := testUser(t, "alice@example.com", "hunter2!", access.RoleUser)
		api.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(user, nil)

		rec := api.do(t, http.MethodGet, "/api/auth/current", nil,
			api.accessToken(t, "alice@example.com", access.RoleUser))

		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "alice@example.com", body["email"])
		assert.Equal(t, user.ID.String(), body["id"])
	})

	t.Run("no token is unauthorized", func(t *testing.T) {
		api := newTestAPI(t)

		rec := api.do(t, http.MethodGet, "/api/auth/current", nil, "")

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "TOKEN_MISSING", decodeError(t, rec).Code)
	})

	t.Run("tampered token is unauthorized", func(t *testing.T) {
		api := newTestAPI(t)

		otherCodec, err := token.NewCodec([]byte("ffffffffffffffffffffffffffffffff"), time.Minute, time.Hour)
		require.NoError(t, err)
		forged, err := otherCodec.Issue("alice@example.com", []string{access.RoleAdmin}, token.PurposeAccess)
		require.NoError(t, err)

		rec := api.do(t, http.MethodGet, "/api/auth/current", nil, forged)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, "TOKEN_SIGNATURE_INVALID", body.Code)
		assert.Equal(t, "token signature is invalid", body.Message)
	})
}

func TestRoleAssignment(t *testing.T) {
	t.Run("admin can replace a user's roles", func(t *testing.T) {
		api := newTestAPI(t)
		id := ulid.Make()
		api.users.On("UpdateRoles", mock.Anything, id, []string{access.RoleAdmin, access.RoleUser}).Return(nil)

		rec := api.do(t, http.MethodPut, "/api/users/"+id.String()+"/roles", map[string]any{
			"roles": []string{"USER", "ADMIN"},
		}, api.accessToken(t, "root@example.com", access.RoleAdmin))

		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("non admin is forbidden", func(t *testing.T) {
		api := newTestAPI(t)
		id := ulid.Make()

		rec := api.do(t, http.MethodPut, "/api/users/"+id.String()+"/roles", map[string]any{
			"roles": []string{"ADMIN"},
		}, api.accessToken(t, "alice@example.com", access.RoleUser))

		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "ACCESS_DENIED", decodeError(t, rec).Code)
	})

	t.Run("unknown role name is rejected", func(t *testing.T) {
		api := newTestAPI(t)
		id := ulid.Make()

		rec := api.do(t, http.MethodPut, "/api/users/"+id.String()+"/roles", map[string]any{
			"roles": []string{"SUPERUSER"},
		}, api.accessToken(t, "root@example.com", access.RoleAdmin))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "ROLE_UNKNOWN", decodeError(t, rec).Code)
	})

	t.Run("malformed user id is a bad request", func(t *testing.T) {
		api := newTestAPI(t)

		rec := api.do(t, http.MethodPut, "/api/users/not-a-ulid/roles", map[string]any{
			"roles": []string{"USER"},
		}, api.accessToken(t, "root@example.com", access.RoleAdmin))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_REQUEST", decodeError(t, rec).Code)
	})

	t.Run("policy covers admin paths the router does not know", func(t *testing.T) {
		api := newTestAPI(t)

		rec := api.do(t, http.MethodGet, "/api/admin/reports/daily", nil,
			api.accessToken(t, "alice@example.com", access.RoleUser))

		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "ACCESS_DENIED", decodeError(t, rec).Code)
	})
}

func TestForgotPassword(t *testing.T) {
	t.Run("known email stores a reset ticket", func(t *testing.T) {
		api := newTestAPI(t)
		user := testUser(t, "alice@example.com", "hunter2!", access.RoleUser)
		api.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(user, nil)
		api.users.On("SetResetCode", mock.Anything, user.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)

		rec := api.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{
			"email": "alice@example.com",
		}, "")

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown email is not found", func(t *testing.T) {
		api := newTestAPI(t)
		api.users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, auth.ErrNotFound)

		rec := api.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{
			"email": "ghost@example.com",
		}, "")

		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "PRINCIPAL_NOT_FOUND", decodeError(t, rec).Code)
	})
}

func TestResetPassword(t *testing.T) {
	t.Run("valid code replaces the password", func(t *testing.T) {
		api := newTestAPI(t)
		user := testUser(t, "alice@example.com", "hunter2!", access.RoleUser)
		code := "042137"
		expiry := time.Now().Add(10 * time.Minute)
		user.ResetCode = &code
		user.ResetCodeExpiry = &expiry

		api.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(user, nil)
		api.users.On("UpdatePassword", mock.Anything, user.ID, mock.AnythingOfType("string")).Return(nil)
		api.users.On("ClearResetCode", mock.Anything, user.ID).Return(nil)

		rec := api.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{
			"email":       "alice@example.com",
			"code":        code,
			"newPassword": "n3w-password",
		}, "")

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong code is rejected", func(t *testing.T) {
		api := newTestAPI(t)
		user := testUser(t, "alice@example.com", "hunter2!", access.RoleUser)
		code := "042137"
		expiry := time.Now().Add(10 * time.Minute)
		user.ResetCode = &code
		user.ResetCodeExpiry = &expiry

		api.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(user, nil)

		rec := api.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{
			"email":       "alice@example.com",
			"code":        "000000",
			"newPassword": "n3w-password",
		}, "")

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "RESET_CODE_INVALID", decodeError(t, rec).Code)
	})
}

func TestChangePassword(t *testing.T) {
	t.Run("replaces password for the token subject", func(t *testing.T) {
		api := newTestAPI(t)
		user := testUser(t, "alice@example.com", "hunter2!", access.RoleUser)
		api.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(user, nil)
		api.users.On("UpdatePassword", mock.Anything, user.ID, mock.AnythingOfType("string")).Return(nil)

		rec := api.do(t, http.MethodPut, "/api/auth/password", map[string]string{
			"newPassword": "n3w-password",
		}, api.accessToken(t, "alice@example.com", access.RoleUser))

		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("empty password is rejected", func(t *testing.T) {
		api := newTestAPI(t)
		user := testUser(t, "alice@example.com", "hunter2!", access.RoleUser)
		api.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(user, nil)

		rec := api.do(t, http.MethodPut, "/api/auth/password", map[string]string{
			"newPassword": "",
		}, api.accessToken(t, "alice@example.com", access.RoleUser))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "AUTH_EMPTY_PASSWORD", decodeError(t, rec).Code)
	})

	t.Run("no token is unauthorized", func(t *testing.T) {
		api := newTestAPI(t)

		rec := api.do(t, http.MethodPut, "/api/auth/password", map[string]string{
			"newPassword": "n3w-password",
		}, "")

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "TOKEN_MISSING", decodeError(t, rec).Code)
	})
}

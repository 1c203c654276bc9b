package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/propflow/etl-api/internal/authz"
	"github.com/propflow/etl-api/internal/config"
)

func newTestAuthHandler(t *testing.T) *AuthHandler {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := &config.Config{
		JWTSecret: "test-secret",
		Operator: config.OperatorConfig{
			Email:        "ops@propflow.dev",
			PasswordHash: string(hash),
		},
	}
	return NewAuthHandler(cfg, zerolog.Nop())
}

func doLogin(t *testing.T, h *AuthHandler, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	body := strings.NewReader(`{"email":"` + email + `","password":"` + password + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/login", body)
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	return rec
}

func TestLoginSuccess(t *testing.T) {
	h := newTestAuthHandler(t)

	rec := doLogin(t, h, "ops@propflow.dev", "hunter2")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp["token"])
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h := newTestAuthHandler(t)

	assert.Equal(t, http.StatusUnauthorized, doLogin(t, h, "ops@propflow.dev", "wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, doLogin(t, h, "intruder@propflow.dev", "hunter2").Code)
}

func TestJWTMiddleware(t *testing.T) {
	h := newTestAuthHandler(t)

	var seenOperator string
	protected := h.JWTMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenOperator, _ = authz.OperatorFromRequest(r)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token passes and carries identity", func(t *testing.T) {
		login := doLogin(t, h, "ops@propflow.dev", "hunter2")
		var resp map[string]string
		require.NoError(t, json.NewDecoder(login.Body).Decode(&resp))

		req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
		req.Header.Set("Authorization", "Bearer "+resp["token"])
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ops@propflow.dev", seenOperator)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/recyclepay/backend/internal/services"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func identityHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())
		json.NewEncoder(w).Encode(map[string]string{
			"userId": userID,
			"role":   RoleFromContext(r.Context()),
		})
	})
}

func TestAuthenticator_Middleware(t *testing.T) {
	logger, _ := test.NewNullLogger()
	auth := NewAuthenticator(testSecret, nil, logger)
	handler := auth.Middleware(identityHandler())

	valid := signToken(t, jwt.MapClaims{
		"user_id": "user-1",
		"role":    "admin",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid token", "Bearer " + valid, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, jwt.MapClaims{"user_id": "user-1"}, "other"), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, jwt.MapClaims{"user_id": "user-1", "exp": time.Now().Add(-time.Hour).Unix()}, testSecret), http.StatusUnauthorized},
		{"no user claim", "Bearer " + signToken(t, jwt.MapClaims{"role": "admin"}, testSecret), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				var resp services.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.NotEmpty(t, resp.Error)
				return
			}

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "user-1", body["userId"])
			assert.Equal(t, "admin", body["role"])
		})
	}
}

func TestAuthenticator_RevokedToken(t *testing.T) {
	logger, _ := test.NewNullLogger()
	client, mock := redismock.NewClientMock()
	auth := NewAuthenticator(testSecret, client, logger)

	token := signToken(t, jwt.MapClaims{"user_id": "user-1"}, testSecret)
	mock.ExpectExists("blacklist:" + token).SetVal(1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	auth.Middleware(identityHandler()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(identityHandler())

	t.Run("admin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), "admin-1", RoleAdmin))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("regular user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), "user-1", "user"))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

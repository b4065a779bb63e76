package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-gateway-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub": "caller-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
}

func TestHMACValidator(t *testing.T) {
	validator := NewHMACValidator(testSecret)
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		token := signToken(t, testSecret, validClaims())

		claims, err := validator.ValidateToken(ctx, token)

		require.NoError(t, err)
		assert.Equal(t, "caller-1", claims.Subject)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "other-secret", validClaims())

		_, err := validator.ValidateToken(ctx, token)
		assert.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{
			"sub": "caller-1",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})

		_, err := validator.ValidateToken(ctx, token)
		assert.Error(t, err)
	})

	t.Run("wrong signing method", func(t *testing.T) {
		// alg=none tokens must never pass an HMAC validator.
		token := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims())
		unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = validator.ValidateToken(ctx, unsigned)
		assert.Error(t, err)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := validator.ValidateToken(ctx, "not-a-jwt")
		assert.Error(t, err)
	})
}

func TestRequireAuth(t *testing.T) {
	validator := NewHMACValidator(testSecret)
	mw := NewAuthMiddleware(validator, zap.NewNop())

	var gotClaims *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = GetClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := mw.RequireAuth(next)

	t.Run("valid bearer token passes with claims in context", func(t *testing.T) {
		gotClaims = nil
		req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims()))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotClaims)
		assert.Equal(t, "caller-1", gotClaims.Subject)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-bearer scheme rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", validClaims()))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

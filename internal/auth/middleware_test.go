package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ms-ticketcodes/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protected(t *testing.T, v Verifier) http.Handler {
	return Middleware(v, logger.NewDiscard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(UserID(r.Context())))
	}))
}

func TestMiddlewareAcceptsSignedToken(t *testing.T) {
	v, err := NewHMACVerifier("s3cret")
	require.NoError(t, err)
	token, err := v.Sign("admin@example.com", jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protected(t, v).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin@example.com", rec.Body.String())
}

func TestMiddlewareRejects(t *testing.T) {
	v, _ := NewHMACVerifier("s3cret")
	other, _ := NewHMACVerifier("other")

	expired, err := v.Sign("admin", jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))})
	require.NoError(t, err)
	noExpiry, err := v.Sign("admin", jwt.RegisteredClaims{})
	require.NoError(t, err)
	foreign, err := other.Sign("admin", jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":   "",
		"malformed": "Token abc",
		"expired":   "Bearer " + expired,
		"no expiry": "Bearer " + noExpiry,
		"foreign":   "Bearer " + foreign,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			protected(t, v).ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestNewHMACVerifierRequiresSecret(t *testing.T) {
	_, err := NewHMACVerifier("")
	assert.Error(t, err)
}

package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret []byte, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func testClaims(userID uuid.UUID, issuer string, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		UserID:   userID,
		Username: "ada",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
}

func TestVerifierRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	verifier := NewVerifier(secret, "minato-identity")
	userID := uuid.New()

	token := signToken(t, secret, testClaims(userID, "minato-identity", time.Hour))

	principal, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, principal.UserID)
	assert.Equal(t, "ada", principal.Username)
}

func TestVerifierRejectsWrongSecret(t *testing.T) {
	verifier := NewVerifier([]byte("right"), "minato-identity")
	token := signToken(t, []byte("wrong"), testClaims(uuid.New(), "minato-identity", time.Hour))

	_, err := verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifierRejectsExpired(t *testing.T) {
	secret := []byte("test-secret")
	verifier := NewVerifier(secret, "minato-identity")
	token := signToken(t, secret, testClaims(uuid.New(), "minato-identity", -time.Minute))

	_, err := verifier.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifierRejectsWrongIssuer(t *testing.T) {
	secret := []byte("test-secret")
	verifier := NewVerifier(secret, "minato-identity")
	token := signToken(t, secret, testClaims(uuid.New(), "someone-else", time.Hour))

	_, err := verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	verifier := NewVerifier([]byte("test-secret"), "")
	handler := Middleware(verifier, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareInjectsPrincipal(t *testing.T) {
	secret := []byte("test-secret")
	verifier := NewVerifier(secret, "")
	userID := uuid.New()
	token := signToken(t, secret, testClaims(userID, "", time.Hour))

	var seen *Principal
	handler := Middleware(verifier, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, userID, seen.UserID)
}

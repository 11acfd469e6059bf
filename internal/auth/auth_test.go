package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret, issuer, subject string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email:    "user@example.com",
		Username: "user",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyToken(t *testing.T) {
	v := NewVerifier(&Config{JWTSecret: "secret", Issuer: "accounts"})

	r := httptest.NewRequest("GET", "/files/", nil)
	r.Header.Set("Authorization", "Bearer "+signToken(t, "secret", "accounts", "acc-1"))

	accountID, err := v.VerifyToken(r)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", accountID)
}

func TestVerifyRequestIdentity(t *testing.T) {
	v := NewVerifier(&Config{JWTSecret: "secret"})

	r := httptest.NewRequest("GET", "/files/", nil)
	r.Header.Set("Authorization", "Bearer "+signToken(t, "secret", "", "acc-1"))

	identity, err := v.VerifyRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", identity.ID)
	assert.Equal(t, "user@example.com", identity.Email)
	assert.Equal(t, "user", identity.Username)
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	v := NewVerifier(&Config{JWTSecret: "secret"})

	_, err := v.VerifyRawToken(signToken(t, "other-secret", "", "acc-1"))
	assert.Error(t, err)
}

func TestVerifyTokenRejectsWrongIssuer(t *testing.T) {
	v := NewVerifier(&Config{JWTSecret: "secret", Issuer: "accounts"})

	_, err := v.VerifyRawToken(signToken(t, "secret", "someone-else", "acc-1"))
	assert.Error(t, err)
}

func TestVerifyTokenRejectsMissingHeader(t *testing.T) {
	v := NewVerifier(&Config{JWTSecret: "secret"})

	r := httptest.NewRequest("GET", "/files/", nil)
	_, err := v.VerifyToken(r)
	assert.Error(t, err)
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	v := NewVerifier(&Config{JWTSecret: "secret"})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = v.VerifyRawToken(signed)
	assert.Error(t, err)
}

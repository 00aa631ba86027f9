package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelforge/api/internal/config"
)

const secret = "test-secret"

func TestLegacyToken_RoundTrip(t *testing.T) {
	token, err := IssueLegacyToken(secret, "user-1", "a@example.com", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateLegacyToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, legacyIssuer, claims.Issuer)
	require.NotNil(t, claims.ExpiresAt)
}

func TestLegacyToken_WrongSecret(t *testing.T) {
	token, err := IssueLegacyToken(secret, "user-1", "", 0)
	require.NoError(t, err)

	_, err = ValidateLegacyToken(token, "other")
	assert.Error(t, err)
}

func TestLegacyToken_Expired(t *testing.T) {
	claims := LegacyClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = ValidateLegacyToken(token, secret)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestLegacyToken_RequiresUserID(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, LegacyClaims{Email: "x@example.com"}).SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = ValidateLegacyToken(token, secret)
	assert.Error(t, err)
}

func TestLegacyToken_RejectsUnsigned(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, LegacyClaims{UserID: "user-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateLegacyToken(token, secret)
	assert.Error(t, err)
}

func TestIssueLegacyToken_NoSecret(t *testing.T) {
	_, err := IssueLegacyToken("", "user-1", "", time.Hour)
	assert.Error(t, err)
}

func TestNewJWKSVerifier_RequiresIssuer(t *testing.T) {
	_, err := NewJWKSVerifier(context.Background(), &config.ZitadelConfig{})
	assert.Error(t, err)
}

func TestDiscoverJWKSURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /good/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"issuer":"x","jwks_uri":"https://issuer.example/keys"}`))
	})
	mux.HandleFunc("GET /empty/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"issuer":"x"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	url, err := discoverJWKSURL(context.Background(), srv.URL+"/good")
	require.NoError(t, err)
	assert.Equal(t, "https://issuer.example/keys", url)

	_, err = discoverJWKSURL(context.Background(), srv.URL+"/empty")
	assert.ErrorContains(t, err, "jwks_uri not found")

	_, err = discoverJWKSURL(context.Background(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "status 404")
}

func TestJWKSVerifier_Audience(t *testing.T) {
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{Audience: jwt.ClaimStrings{"web", "api-client"}}}

	assert.True(t, (&JWKSVerifier{}).audienceOK(claims))
	assert.True(t, (&JWKSVerifier{audience: "api-client"}).audienceOK(claims))
	assert.False(t, (&JWKSVerifier{audience: "other"}).audienceOK(claims))
}

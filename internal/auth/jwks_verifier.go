package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/reelforge/api/internal/config"
)

// TokenVerifier checks a bearer token and returns its claims
type TokenVerifier interface {
	Validate(tokenString string) (*Claims, error)
	Close() error
}

// Claims is the subset of the Zitadel ID token the API reads
type Claims struct {
	UserID string   `json:"sub"`
	Email  string   `json:"email,omitempty"`
	Name   string   `json:"name,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

var discoveryClient = &http.Client{Timeout: 30 * time.Second}

// JWKSVerifier accepts asymmetric tokens from one issuer. keyfunc keeps the
// key set fresh in the background until Close cancels it.
type JWKSVerifier struct {
	keys     keyfunc.Keyfunc
	issuer   string
	audience string
	stop     context.CancelFunc
}

func NewJWKSVerifier(ctx context.Context, cfg *config.ZitadelConfig) (*JWKSVerifier, error) {
	issuer := strings.TrimRight(cfg.Issuer, "/")
	if issuer == "" {
		return nil, errors.New("jwks: issuer is required")
	}

	keysURL, err := discoverJWKSURL(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("jwks: discovery: %w", err)
	}

	// refreshing outlives this call, so it hangs off ctx and not a timeout
	refreshCtx, stop := context.WithCancel(ctx)
	keys, err := keyfunc.NewDefaultCtx(refreshCtx, []string{keysURL})
	if err != nil {
		stop()
		return nil, fmt.Errorf("jwks: load %s: %w", keysURL, err)
	}

	return &JWKSVerifier{keys: keys, issuer: issuer, audience: cfg.ClientID, stop: stop}, nil
}

// discoverJWKSURL reads jwks_uri from the issuer's openid-configuration
func discoverJWKSURL(ctx context.Context, issuer string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuer+"/.well-known/openid-configuration", nil)
	if err != nil {
		return "", err
	}
	resp, err := discoveryClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openid-configuration returned status %d", resp.StatusCode)
	}

	var doc struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("decode openid-configuration: %w", err)
	}
	if doc.JWKSURI == "" {
		return "", errors.New("jwks_uri not found in openid-configuration")
	}
	return doc.JWKSURI, nil
}

func (v *JWKSVerifier) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keys.Keyfunc,
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if !v.audienceOK(claims) {
		return nil, errors.New("token audience does not include this client")
	}
	return claims, nil
}

// audienceOK passes when no client id is configured
func (v *JWKSVerifier) audienceOK(claims *Claims) bool {
	if v.audience == "" {
		return true
	}
	aud, err := claims.GetAudience()
	return err == nil && slices.Contains(aud, v.audience)
}

func (v *JWKSVerifier) Close() error {
	v.stop()
	return nil
}

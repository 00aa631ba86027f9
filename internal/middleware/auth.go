package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/reelforge/api/internal/auth"
	"github.com/reelforge/api/pkg/response"
)

var (
	errMissingToken = errors.New("missing authorization header")
	errBadHeader    = errors.New("invalid authorization header format")
	errNoAuth       = errors.New("authentication not configured")
	errBadToken     = errors.New("invalid or expired token")
)

// Identity is the authenticated caller
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// AuthMiddleware verifies bearer tokens against Zitadel's JWKS and falls back
// to legacy HMAC tokens when a secret is configured
type AuthMiddleware struct {
	verifier  auth.TokenVerifier
	jwtSecret string
}

// NewAuthMiddleware accepts a nil verifier for legacy-only setups
func NewAuthMiddleware(verifier auth.TokenVerifier, jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, jwtSecret: jwtSecret}
}

// Configured reports whether any token check is available
func (m *AuthMiddleware) Configured() bool {
	return m.verifier != nil || m.jwtSecret != ""
}

// Authenticate validates the bearer token from the Authorization header.
// Browsers cannot set headers on websocket upgrades, so those may pass the
// token as the "token" query parameter instead.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c)
		if err != nil {
			return response.Unauthorized(c, capitalize(err.Error()))
		}
		id, err := m.Verify(token)
		if err != nil {
			return response.Unauthorized(c, capitalize(err.Error()))
		}
		setIdentity(c, id)
		return c.Next()
	}
}

// Verify checks a raw token, JWKS first
func (m *AuthMiddleware) Verify(token string) (Identity, error) {
	if !m.Configured() {
		return Identity{}, errNoAuth
	}
	if m.verifier != nil {
		claims, err := m.verifier.Validate(token)
		if err == nil {
			return Identity{UserID: claims.UserID, Email: claims.Email, Name: claims.Name}, nil
		}
		if m.jwtSecret == "" {
			return Identity{}, errBadToken
		}
	}
	claims, err := auth.ValidateLegacyToken(token, m.jwtSecret)
	if err != nil {
		return Identity{}, errBadToken
	}
	return Identity{UserID: claims.UserID, Email: claims.Email}, nil
}

func bearerToken(c *fiber.Ctx) (string, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		if q := c.Query("token"); q != "" && isUpgrade(c) {
			return q, nil
		}
		return "", errMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", errBadHeader
	}
	return parts[1], nil
}

func isUpgrade(c *fiber.Ctx) bool {
	return strings.EqualFold(c.Get(fiber.HeaderUpgrade), "websocket")
}

func setIdentity(c *fiber.Ctx, id Identity) {
	c.Locals("userId", id.UserID)
	c.Locals("email", id.Email)
	c.Locals("name", id.Name)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("userId").(string); ok {
		return userID
	}
	return ""
}

// GetUserEmail extracts user email from context
func GetUserEmail(c *fiber.Ctx) string {
	if email, ok := c.Locals("email").(string); ok {
		return email
	}
	return ""
}

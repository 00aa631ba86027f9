package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/reelforge/api/internal/auth"
)

const testSecret = "middleware-secret"

type fakeVerifier struct {
	valid map[string]*auth.Claims
}

func (f fakeVerifier) Validate(token string) (*auth.Claims, error) {
	if c, ok := f.valid[token]; ok {
		return c, nil
	}
	return nil, errors.New("unknown token")
}

func (fakeVerifier) Close() error { return nil }

func whoAmI(c *fiber.Ctx) error {
	return c.SendString(GetUserID(c) + "|" + GetUserEmail(c))
}

func get(t *testing.T, app *fiber.App, path string, headers map[string]string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestAuthenticate_Legacy(t *testing.T) {
	app := fiber.New()
	app.Get("/me", NewAuthMiddleware(nil, testSecret).Authenticate(), whoAmI)

	token, err := auth.IssueLegacyToken(testSecret, "user-1", "u@example.com", time.Hour)
	require.NoError(t, err)

	status, body := get(t, app, "/me", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "user-1|u@example.com", body)

	status, _ = get(t, app, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = get(t, app, "/me", map[string]string{"Authorization": "Token " + token})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, "Invalid authorization header format")

	status, _ = get(t, app, "/me", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAuthenticate_JWKSWithFallback(t *testing.T) {
	verifier := fakeVerifier{valid: map[string]*auth.Claims{
		"oidc-token": {UserID: "zitadel-user", Email: "z@example.com"},
	}}
	app := fiber.New()
	app.Get("/me", NewAuthMiddleware(verifier, testSecret).Authenticate(), whoAmI)

	status, body := get(t, app, "/me", map[string]string{"Authorization": "Bearer oidc-token"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "zitadel-user|z@example.com", body)

	legacy, err := auth.IssueLegacyToken(testSecret, "legacy-user", "", time.Hour)
	require.NoError(t, err)
	status, body = get(t, app, "/me", map[string]string{"Authorization": "Bearer " + legacy})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "legacy-user|", body)
}

func TestAuthenticate_JWKSOnly(t *testing.T) {
	app := fiber.New()
	app.Get("/me", NewAuthMiddleware(fakeVerifier{}, "").Authenticate(), whoAmI)

	legacy, err := auth.IssueLegacyToken(testSecret, "legacy-user", "", time.Hour)
	require.NoError(t, err)
	status, _ := get(t, app, "/me", map[string]string{"Authorization": "Bearer " + legacy})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAuthenticate_NotConfigured(t *testing.T) {
	m := NewAuthMiddleware(nil, "")
	assert.False(t, m.Configured())

	app := fiber.New()
	app.Get("/me", m.Authenticate(), whoAmI)
	status, body := get(t, app, "/me", map[string]string{"Authorization": "Bearer x"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, "Authentication not configured")
}

func TestAuthenticate_QueryTokenOnlyForUpgrades(t *testing.T) {
	app := fiber.New()
	app.Get("/ws", NewAuthMiddleware(nil, testSecret).Authenticate(), whoAmI)

	token, err := auth.IssueLegacyToken(testSecret, "user-1", "", time.Hour)
	require.NoError(t, err)

	status, _ := get(t, app, "/ws?token="+token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := get(t, app, "/ws?token="+token, map[string]string{"Upgrade": "websocket", "Connection": "Upgrade"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "user-1|", body)
}

func TestGatewayAuthMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/me", GatewayAuthMiddleware(), whoAmI)

	status, body := get(t, app, "/me", map[string]string{"X-User-Id": "gw-user", "X-User-Email": "g@example.com"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "gw-user|g@example.com", body)

	status, _ = get(t, app, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRateLimiter_WithoutRedisPasses(t *testing.T) {
	app := fiber.New()
	app.Get("/x", GatewayAuthMiddleware(), NewRateLimiter(nil, nil).GenerateLimit(1), whoAmI)

	for i := 0; i < 3; i++ {
		status, _ := get(t, app, "/x", map[string]string{"X-User-Id": "u"})
		assert.Equal(t, http.StatusOK, status)
	}
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestRateLimiter_Redis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rdb := setupRedis(t)

	app := fiber.New()
	app.Get("/x", GatewayAuthMiddleware(), NewRateLimiter(rdb, nil).RenderLimit(2), whoAmI)
	headers := map[string]string{"X-User-Id": "limited"}

	for i := 0; i < 2; i++ {
		status, _ := get(t, app, "/x", headers)
		assert.Equal(t, http.StatusOK, status)
	}
	status, body := get(t, app, "/x", headers)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, body, "RATE_LIMITED")

	// other users have their own window
	status, _ = get(t, app, "/x", map[string]string{"X-User-Id": "other"})
	assert.Equal(t, http.StatusOK, status)

	ttl, err := rdb.TTL(context.Background(), "ratelimit:render:limited").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
}

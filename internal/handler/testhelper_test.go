package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/reelforge/api/internal/auth"
	"github.com/reelforge/api/internal/capability"
	"github.com/reelforge/api/internal/config"
	"github.com/reelforge/api/internal/consistency"
	"github.com/reelforge/api/internal/handler"
	"github.com/reelforge/api/internal/middleware"
	"github.com/reelforge/api/internal/model"
	"github.com/reelforge/api/internal/render"
	"github.com/reelforge/api/internal/routing"
	"github.com/reelforge/api/internal/service"
	"github.com/reelforge/api/internal/store"
)

const testJWTSecret = "test-secret-for-handlers"

type captureQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (q *captureQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "task", Type: task.Type()}, nil
}

func (q *captureQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// testApp holds the app and the pieces tests reach into
type testApp struct {
	app     *fiber.App
	store   *store.MemoryStore
	guard   *service.MemoryRunGuard
	queue   *captureQueue
	manager *render.Manager
}

// setupApp builds the same router as the server over in-memory collaborators
func setupApp(t *testing.T) *testApp {
	t.Helper()

	reg, err := capability.NewDefault()
	require.NoError(t, err)

	st := store.NewMemoryStore()
	guard := service.NewMemoryRunGuard()
	queue := &captureQueue{}
	manager := render.NewManager(render.NewMemoryJobStore(), render.NewMockComposer(""), nil)
	validate := validator.New()

	timelines := service.NewTimelineService(st, reg,
		routing.NewEngine(reg, routing.DefaultQualityTolerance),
		routing.NewSplitter(reg),
		consistency.NewChecker(),
		guard, nil)

	authMiddleware := middleware.NewAuthMiddleware(nil, testJWTSecret)

	app := fiber.New(fiber.Config{BodyLimit: 50 * 1024 * 1024})
	handler.Register(app, handler.Handlers{
		Health:     handler.NewHealthHandler(map[string]bool{"generation": false, "r2": false}),
		Auth:       handler.NewAuthHandler(authMiddleware),
		Models:     handler.NewModelHandler(reg),
		Timelines:  handler.NewTimelineHandler(timelines, validate),
		Generation: handler.NewGenerationHandler(service.NewGenerationService(timelines, queue, guard, nil), validate),
		Render:     handler.NewRenderHandler(service.NewRenderService(timelines, manager, queue, nil)),
		Upload:     handler.NewUploadHandler(service.NewUploadService(nil), timelines),
	}, handler.RouteOptions{
		Authenticate: authMiddleware.Authenticate(),
		Limiter:      middleware.NewRateLimiter(nil, nil),
		Limits:       config.RateLimitConfig{GeneratePerHour: 10000, RenderPerHour: 10000, UploadPerHour: 10000, EditPerMin: 10000},
	})

	return &testApp{app: app, store: st, guard: guard, queue: queue, manager: manager}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	token, err := auth.IssueLegacyToken(testJWTSecret, "test-user-123", "test@example.com", time.Hour)
	require.NoError(t, err)
	return token
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request and fails the test on
// transport errors.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	resp, err := doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + generateToken(t),
	})
	require.NoError(t, err)
	return resp
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &result), "body: %s", body)
	return result
}

// decode parses the response body into v
func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	body := readBody(t, resp)
	require.NoError(t, json.Unmarshal([]byte(body), v), "body: %s", body)
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// errorCode extracts error.code from an error envelope
func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	body := parseJSON(t, resp)
	e, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "expected error envelope, got %v", body)
	code, _ := e["code"].(string)
	return code
}

// createTimeline creates a timeline through the API
func createTimeline(t *testing.T, ta *testApp) model.Timeline {
	t.Helper()
	resp := doAuthRequest(t, ta.app, http.MethodPost, "/api/v1/timelines", `{"name":"Launch teaser","tags":["promo"]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var tl model.Timeline
	decode(t, resp, &tl)
	return tl
}

// markGenerated gives every segment a generated clip
func markGenerated(t *testing.T, ta *testApp, id string) {
	t.Helper()
	ctx := context.Background()
	tl, err := ta.store.Get(ctx, id)
	require.NoError(t, err)
	for i := range tl.Segments {
		tl.Segments[i].Status = model.SegmentGenerated
		tl.Segments[i].VideoURL = "https://cdn.example/clip.mp4"
	}
	require.NoError(t, ta.store.Update(ctx, tl))
}

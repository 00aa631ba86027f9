package handler

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/reelforge/api/internal/config"
	"github.com/reelforge/api/internal/middleware"
	ws "github.com/reelforge/api/internal/websocket"
)

// Handlers groups everything Register mounts
type Handlers struct {
	Health     *HealthHandler
	Auth       *AuthHandler
	Models     *ModelHandler
	Timelines  *TimelineHandler
	Generation *GenerationHandler
	Render     *RenderHandler
	Upload     *UploadHandler
}

// RouteOptions carries the cross-cutting pieces of the router
type RouteOptions struct {
	Authenticate fiber.Handler
	Limiter      *middleware.RateLimiter
	Limits       config.RateLimitConfig
	Hub          *ws.Hub
}

// Register mounts the HTTP and websocket surface on app
func Register(app *fiber.App, h Handlers, opts RouteOptions) {
	app.Get("/", h.Health.Root)
	app.Get("/health", h.Health.Health)
	if h.Auth != nil {
		app.Get("/auth/verify", h.Auth.Verify)
	}

	rl := opts.Limiter
	edit := rl.EditLimit(opts.Limits.EditPerMin)

	api := app.Group("/api/v1", opts.Authenticate)

	api.Get("/models", h.Models.List)
	api.Get("/models/:modelId", h.Models.Get)

	api.Get("/renders/:jobId", h.Render.Status)

	timelines := api.Group("/timelines")
	timelines.Get("/", h.Timelines.List)
	timelines.Post("/", edit, h.Timelines.Create)
	timelines.Post("/import", edit, h.Timelines.Import)
	timelines.Get("/:id", h.Timelines.Get)
	timelines.Patch("/:id", edit, h.Timelines.Update)
	timelines.Delete("/:id", edit, h.Timelines.Delete)
	timelines.Get("/:id/export", h.Timelines.Export)

	timelines.Get("/:id/routing", h.Timelines.Routing)
	timelines.Post("/:id/split", edit, h.Timelines.SplitAll)
	timelines.Get("/:id/consistency", h.Timelines.Consistency)

	timelines.Post("/:id/generate", rl.GenerateLimit(opts.Limits.GeneratePerHour), h.Generation.Generate)
	timelines.Post("/:id/render", rl.RenderLimit(opts.Limits.RenderPerHour), h.Render.Start)

	timelines.Post("/:id/frames", rl.UploadLimit(opts.Limits.UploadPerHour), h.Upload.Frame)
	timelines.Delete("/:id/frames/:frameId", h.Upload.DeleteFrame)

	segments := timelines.Group("/:id/segments")
	segments.Post("/", edit, h.Timelines.AddSegment)
	segments.Put("/order", edit, h.Timelines.Reorder)
	segments.Patch("/:segmentId", edit, h.Timelines.UpdateSegment)
	segments.Delete("/:segmentId", edit, h.Timelines.RemoveSegment)
	segments.Post("/:segmentId/duplicate", edit, h.Timelines.DuplicateSegment)
	segments.Post("/:segmentId/move", edit, h.Timelines.MoveSegment)
	segments.Get("/:segmentId/routing", h.Timelines.SegmentRouting)
	segments.Post("/:segmentId/routing/apply", edit, h.Timelines.ApplyRouting)
	segments.Post("/:segmentId/split", edit, h.Timelines.SplitSegment)
	segments.Post("/:segmentId/generate", rl.GenerateLimit(opts.Limits.GeneratePerHour), h.Generation.GenerateSegment)

	if opts.Hub != nil {
		// topics are timeline ids for generation runs and job ids for renders
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws/topics/:topic", opts.Authenticate, websocket.New(func(c *websocket.Conn) {
			opts.Hub.HandleConnection(c, c.Params("topic"))
		}))
	}
}

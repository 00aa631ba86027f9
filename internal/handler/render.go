package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/reelforge/api/internal/service"
	"github.com/reelforge/api/pkg/response"
)

type RenderHandler struct {
	service *service.RenderService
}

func NewRenderHandler(svc *service.RenderService) *RenderHandler {
	return &RenderHandler{service: svc}
}

// Start handles POST /api/v1/timelines/:id/render
//
// Every call creates a new job; progress is streamed on /ws/topics/:jobId.
func (h *RenderHandler) Start(c *fiber.Ctx) error {
	job, err := h.service.StartRender(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return response.Accepted(c, job)
}

// Status handles GET /api/v1/renders/:jobId
func (h *RenderHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.service.GetJob(c.UserContext(), jobID)
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, job)
}

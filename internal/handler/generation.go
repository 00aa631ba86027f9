package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/reelforge/api/internal/model"
	"github.com/reelforge/api/internal/service"
	"github.com/reelforge/api/pkg/response"
)

type GenerationHandler struct {
	service   *service.GenerationService
	validator *validator.Validate
}

func NewGenerationHandler(svc *service.GenerationService, v *validator.Validate) *GenerationHandler {
	return &GenerationHandler{
		service:   svc,
		validator: v,
	}
}

// Generate handles POST /api/v1/timelines/:id/generate
//
// Progress is streamed on /ws/topics/:id.
func (h *GenerationHandler) Generate(c *fiber.Ctx) error {
	var req model.GenerateRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return writeError(c, err)
	}
	job, err := h.service.Start(c.UserContext(), c.Params("id"), &req)
	if err != nil {
		return writeError(c, err)
	}
	return response.Accepted(c, job)
}

// GenerateSegment handles POST /api/v1/timelines/:id/segments/:segmentId/generate
//
// A single-segment run always regenerates, even over a generated clip.
func (h *GenerationHandler) GenerateSegment(c *fiber.Ctx) error {
	segID, ok := segmentID(c)
	if !ok {
		return response.ValidationError(c, "Invalid segment ID", nil)
	}
	job, err := h.service.StartSegment(c.UserContext(), c.Params("id"), segID)
	if err != nil {
		return writeError(c, err)
	}
	return response.Accepted(c, job)
}

package handler

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/reelforge/api/internal/model"
	"github.com/reelforge/api/internal/service"
	"github.com/reelforge/api/pkg/response"
)

const maxImportSize = 5 * 1024 * 1024 // 5MB

type TimelineHandler struct {
	service   *service.TimelineService
	validator *validator.Validate
}

func NewTimelineHandler(svc *service.TimelineService, v *validator.Validate) *TimelineHandler {
	return &TimelineHandler{
		service:   svc,
		validator: v,
	}
}

// Create handles POST /api/v1/timelines
func (h *TimelineHandler) Create(c *fiber.Ctx) error {
	var req model.CreateTimelineRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return writeError(c, err)
	}
	tl, err := h.service.Create(c.UserContext(), &req)
	if err != nil {
		return writeError(c, err)
	}
	return response.Created(c, tl)
}

// List handles GET /api/v1/timelines
func (h *TimelineHandler) List(c *fiber.Ctx) error {
	list, err := h.service.List(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	if list == nil {
		list = []model.TimelineSummary{}
	}
	return response.OK(c, fiber.Map{"timelines": list})
}

// Get handles GET /api/v1/timelines/:id
func (h *TimelineHandler) Get(c *fiber.Ctx) error {
	tl, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, tl)
}

// Update handles PATCH /api/v1/timelines/:id
func (h *TimelineHandler) Update(c *fiber.Ctx) error {
	var patch model.TimelineMetaPatch
	if err := parseBody(c, h.validator, &patch); err != nil {
		return writeError(c, err)
	}
	tl, err := h.service.UpdateMeta(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, tl)
}

// Delete handles DELETE /api/v1/timelines/:id
func (h *TimelineHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return response.NoContent(c)
}

// Export handles GET /api/v1/timelines/:id/export
func (h *TimelineHandler) Export(c *fiber.Ctx) error {
	id := c.Params("id")
	data, err := h.service.Export(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="timeline-%s.json"`, id))
	return c.Send(data)
}

// Import handles POST /api/v1/timelines/import. The body is an exported
// timeline document.
func (h *TimelineHandler) Import(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return response.ValidationError(c, "Request body is required", nil)
	}
	if len(body) > maxImportSize {
		return response.ValidationError(c, "Import exceeds 5MB limit", fiber.Map{"maxSize": maxImportSize})
	}
	tl, err := h.service.Import(c.UserContext(), body)
	if err != nil {
		return writeError(c, err)
	}
	return response.Created(c, tl)
}

// AddSegment handles POST /api/v1/timelines/:id/segments
func (h *TimelineHandler) AddSegment(c *fiber.Ctx) error {
	var req model.AddSegmentRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return writeError(c, err)
	}
	seg, err := h.service.AddSegment(c.UserContext(), c.Params("id"), &req)
	if err != nil {
		return writeError(c, err)
	}
	return response.Created(c, seg)
}

// UpdateSegment handles PATCH /api/v1/timelines/:id/segments/:segmentId
func (h *TimelineHandler) UpdateSegment(c *fiber.Ctx) error {
	segID, ok := segmentID(c)
	if !ok {
		return response.ValidationError(c, "Invalid segment ID", nil)
	}
	var patch model.SegmentPatch
	if err := parseBody(c, h.validator, &patch); err != nil {
		return writeError(c, err)
	}
	seg, err := h.service.UpdateSegment(c.UserContext(), c.Params("id"), segID, patch)
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, seg)
}

// DuplicateSegment handles POST /api/v1/timelines/:id/segments/:segmentId/duplicate
func (h *TimelineHandler) DuplicateSegment(c *fiber.Ctx) error {
	segID, ok := segmentID(c)
	if !ok {
		return response.ValidationError(c, "Invalid segment ID", nil)
	}
	seg, err := h.service.DuplicateSegment(c.UserContext(), c.Params("id"), segID)
	if err != nil {
		return writeError(c, err)
	}
	return response.Created(c, seg)
}

// RemoveSegment handles DELETE /api/v1/timelines/:id/segments/:segmentId
func (h *TimelineHandler) RemoveSegment(c *fiber.Ctx) error {
	segID, ok := segmentID(c)
	if !ok {
		return response.ValidationError(c, "Invalid segment ID", nil)
	}
	tl, err := h.service.RemoveSegment(c.UserContext(), c.Params("id"), segID)
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, tl)
}

// MoveSegment handles POST /api/v1/timelines/:id/segments/:segmentId/move
func (h *TimelineHandler) MoveSegment(c *fiber.Ctx) error {
	segID, ok := segmentID(c)
	if !ok {
		return response.ValidationError(c, "Invalid segment ID", nil)
	}
	var req model.MoveSegmentRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return writeError(c, err)
	}
	tl, err := h.service.MoveSegment(c.UserContext(), c.Params("id"), segID, req.Index)
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, tl)
}

// Reorder handles PUT /api/v1/timelines/:id/segments/order
func (h *TimelineHandler) Reorder(c *fiber.Ctx) error {
	var req model.ReorderSegmentsRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return writeError(c, err)
	}
	tl, err := h.service.Reorder(c.UserContext(), c.Params("id"), req.SegmentIDs)
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, tl)
}

// Routing handles GET /api/v1/timelines/:id/routing
func (h *TimelineHandler) Routing(c *fiber.Ctx) error {
	decisions, err := h.service.Routing(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, fiber.Map{"decisions": decisions})
}

// SegmentRouting handles GET /api/v1/timelines/:id/segments/:segmentId/routing
func (h *TimelineHandler) SegmentRouting(c *fiber.Ctx) error {
	segID, ok := segmentID(c)
	if !ok {
		return response.ValidationError(c, "Invalid segment ID", nil)
	}
	decision, err := h.service.SegmentRouting(c.UserContext(), c.Params("id"), segID)
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, decision)
}

// ApplyRouting handles POST /api/v1/timelines/:id/segments/:segmentId/routing/apply
func (h *TimelineHandler) ApplyRouting(c *fiber.Ctx) error {
	segID, ok := segmentID(c)
	if !ok {
		return response.ValidationError(c, "Invalid segment ID", nil)
	}
	var req model.ApplyRoutingRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return writeError(c, err)
	}
	seg, err := h.service.ApplyRouting(c.UserContext(), c.Params("id"), segID, req.Model)
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, seg)
}

// SplitSegment handles POST /api/v1/timelines/:id/segments/:segmentId/split
func (h *TimelineHandler) SplitSegment(c *fiber.Ctx) error {
	segID, ok := segmentID(c)
	if !ok {
		return response.ValidationError(c, "Invalid segment ID", nil)
	}
	parts, err := h.service.SplitSegment(c.UserContext(), c.Params("id"), segID)
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, fiber.Map{"segments": parts})
}

// SplitAll handles POST /api/v1/timelines/:id/split
func (h *TimelineHandler) SplitAll(c *fiber.Ctx) error {
	tl, err := h.service.SplitAll(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, tl)
}

// Consistency handles GET /api/v1/timelines/:id/consistency
func (h *TimelineHandler) Consistency(c *fiber.Ctx) error {
	report, err := h.service.Consistency(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, report)
}

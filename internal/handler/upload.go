package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/reelforge/api/internal/service"
	"github.com/reelforge/api/pkg/response"
)

const maxUploadSize = 20 * 1024 * 1024 // 20MB

type UploadHandler struct {
	service   *service.UploadService
	timelines *service.TimelineService
}

func NewUploadHandler(svc *service.UploadService, timelines *service.TimelineService) *UploadHandler {
	return &UploadHandler{
		service:   svc,
		timelines: timelines,
	}
}

// Frame handles POST /api/v1/timelines/:id/frames
//
// Stores a first or last frame image; the returned fileUrl is then set on a
// segment with a regular segment update.
func (h *UploadHandler) Frame(c *fiber.Ctx) error {
	timelineID := c.Params("id")
	if _, err := h.timelines.Get(c.UserContext(), timelineID); err != nil {
		return writeError(c, err)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 20MB limit", fiber.Map{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}

	contentType := file.Header.Get(fiber.HeaderContentType)
	if !service.SupportedFrameType(contentType) {
		return response.ValidationError(c, "Invalid file type. Supported: PNG, JPEG, WEBP", fiber.Map{
			"contentType": contentType,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	result, err := h.service.UploadFrame(c.UserContext(), timelineID, f, file.Size, contentType)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.Created(c, result)
}

// DeleteFrame handles DELETE /api/v1/timelines/:id/frames/:frameId
func (h *UploadHandler) DeleteFrame(c *fiber.Ctx) error {
	frameID := c.Params("frameId")
	if frameID == "" {
		return response.ValidationError(c, "Frame ID is required", nil)
	}
	if err := h.service.DeleteFrame(c.UserContext(), c.Params("id"), frameID); err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.NoContent(c)
}

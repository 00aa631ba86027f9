package handler

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/reelforge/api/internal/render"
	"github.com/reelforge/api/internal/service"
	"github.com/reelforge/api/internal/store"
	"github.com/reelforge/api/internal/timeline"
	"github.com/reelforge/api/pkg/response"
)

// requestError is a malformed or invalid request body
type requestError struct {
	message string
	details interface{}
}

func (e *requestError) Error() string { return e.message }

// writeError maps domain errors onto the response envelope
func writeError(c *fiber.Ctx, err error) error {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return response.ValidationError(c, reqErr.message, reqErr.details)
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return response.NotFound(c, "Timeline not found")
	case errors.Is(err, timeline.ErrSegmentNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, render.ErrJobNotFound):
		return response.NotFound(c, "Render job not found")
	case errors.Is(err, service.ErrRunInFlight),
		errors.Is(err, timeline.ErrSegmentBusy),
		errors.Is(err, store.ErrDuplicate):
		return response.Conflict(c, err.Error())
	case errors.Is(err, service.ErrTimelineNotReady),
		errors.Is(err, timeline.ErrLastSegment),
		errors.Is(err, timeline.ErrInvalidTransition):
		return response.Unprocessable(c, err.Error())
	case errors.Is(err, timeline.ErrInvalidSegment),
		errors.Is(err, timeline.ErrInvalidOrder),
		errors.Is(err, timeline.ErrInvalidImport),
		errors.Is(err, timeline.ErrInvalidTimeline),
		errors.Is(err, service.ErrUnknownModel):
		return response.ValidationError(c, err.Error(), nil)
	}
	return response.ServiceError(c, err.Error())
}

// parseBody decodes and validates the request body into req. An empty body
// leaves req at its zero value.
func parseBody(c *fiber.Ctx, v *validator.Validate, req interface{}) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(req); err != nil {
			return &requestError{message: "Invalid request body"}
		}
	}
	if err := v.Struct(req); err != nil {
		return &requestError{message: "Validation failed", details: formatValidationErrors(err)}
	}
	return nil
}

// segmentID reads the :segmentId route parameter
func segmentID(c *fiber.Ctx) (int, bool) {
	id, err := strconv.Atoi(c.Params("segmentId"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		out := make(map[string]string, len(validationErrors))
		for _, e := range validationErrors {
			out[e.Field()] = e.Tag()
		}
		return out
	}
	return nil
}

package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/reelforge/api/internal/model"
	"github.com/reelforge/api/pkg/response"
)

// ModelCatalog is the read side of the capability registry
type ModelCatalog interface {
	Lookup(id string) (model.ModelCapability, bool)
	All() []model.ModelCapability
	ListAvailable() []model.ModelCapability
	ListPreview() []model.ModelCapability
	ListHighQuality(threshold int) []model.ModelCapability
	DefaultModel() model.ModelCapability
	PreviewModel() model.ModelCapability
}

type ModelHandler struct {
	catalog ModelCatalog
}

func NewModelHandler(catalog ModelCatalog) *ModelHandler {
	return &ModelHandler{catalog: catalog}
}

// List handles GET /api/v1/models
//
// Filters: ?available=true, ?preview=true, ?minQuality=80
func (h *ModelHandler) List(c *fiber.Ctx) error {
	var models []model.ModelCapability
	switch {
	case c.QueryBool("preview"):
		models = h.catalog.ListPreview()
	case c.Query("minQuality") != "":
		threshold := c.QueryInt("minQuality", -1)
		if threshold < 0 || threshold > 100 {
			return response.ValidationError(c, "minQuality must be between 0 and 100", nil)
		}
		models = h.catalog.ListHighQuality(threshold)
	case c.QueryBool("available"):
		models = h.catalog.ListAvailable()
	default:
		models = h.catalog.All()
	}
	if models == nil {
		models = []model.ModelCapability{}
	}
	return response.OK(c, fiber.Map{
		"models":       models,
		"defaultModel": h.catalog.DefaultModel().ID,
		"previewModel": h.catalog.PreviewModel().ID,
	})
}

// Get handles GET /api/v1/models/:modelId
func (h *ModelHandler) Get(c *fiber.Ctx) error {
	capability, ok := h.catalog.Lookup(c.Params("modelId"))
	if !ok {
		return response.NotFound(c, "Model not found")
	}
	return response.OK(c, capability)
}

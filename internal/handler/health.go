package handler

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
)

const healthTimeout = 2 * time.Second

// HealthHandler reports which collaborators are configured and whether the
// live ones answer
type HealthHandler struct {
	services map[string]bool
	checks   map[string]func(context.Context) error
}

func NewHealthHandler(services map[string]bool) *HealthHandler {
	if services == nil {
		services = map[string]bool{}
	}
	return &HealthHandler{services: services, checks: map[string]func(context.Context) error{}}
}

// AddCheck registers a live dependency probe
func (h *HealthHandler) AddCheck(name string, check func(context.Context) error) {
	h.checks[name] = check
}

// Health handles GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	checks := fiber.Map{}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			status = "degraded"
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	return c.JSON(fiber.Map{
		"status":   status,
		"services": h.services,
		"checks":   checks,
	})
}

// Root handles GET /
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"timestamp": time.Now().Unix(),
	})
}

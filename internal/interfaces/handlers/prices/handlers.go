package prices

import (
	"context"

	settlesvc "ventry-backend/internal/application/settlement"
	"ventry-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Refresher runs one price refresh pass.
type Refresher interface {
	RefreshAllPrices(ctx context.Context) settlesvc.RefreshReport
}

type Handlers struct {
	Service  Refresher
	AdminKey string
}

// Refresh POST /api/v1/prices/refresh?key=HEALTH_ADMIN_KEY
func (h *Handlers) Refresh(c *fiber.Ctx) error {
	key := c.Query("key")
	if key == "" || key != h.AdminKey {
		return response.Error(c, "Unauthorized", fiber.StatusForbidden, nil)
	}
	report := h.Service.RefreshAllPrices(c.UserContext())
	if report.Err != nil {
		return response.Error(c, report.Err.Error(), fiber.StatusServiceUnavailable, fiber.Map{"report": report})
	}
	return response.Success(c, "Prices refreshed", report, fiber.Map{
		"updated": report.Updated,
		"failed":  report.Failed,
	})
}

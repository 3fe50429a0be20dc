package jobs

import (
	jobsvc "ventry-backend/internal/application/jobs"
	"ventry-backend/internal/middleware"
	"ventry-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *jobsvc.Service
}

func jobID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	return id, err == nil
}

// ListOpen GET /api/v1/jobs
func (h *Handlers) ListOpen(c *fiber.Ctx) error {
	jobs, err := h.Service.ListOpen(c.UserContext())
	if err != nil {
		return err
	}
	return response.Success(c, "Open jobs fetched", jobs, fiber.Map{"count": len(jobs)})
}

// Get GET /api/v1/jobs/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, ok := jobID(c)
	if !ok {
		return response.BadRequest(c, "Invalid UUID format for job id")
	}
	job, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err, response.On(jobsvc.ErrJobNotFound, fiber.StatusNotFound))
	}
	return response.Success(c, "Job fetched", job, nil)
}

// Pickup POST /api/v1/jobs/:id/pickup (developer only)
func (h *Handlers) Pickup(c *fiber.Ctx) error {
	id, ok := jobID(c)
	if !ok {
		return response.BadRequest(c, "Invalid UUID format for job id")
	}
	job, err := h.Service.Pickup(c.UserContext(), id, middleware.GetAccount(c).AccountID)
	if err != nil {
		return response.FromError(c, err,
			response.On(jobsvc.ErrJobNotFound, fiber.StatusNotFound),
			response.On(jobsvc.ErrJobUnavailable, fiber.StatusConflict),
			response.On(jobsvc.ErrDeveloperNotFound, fiber.StatusForbidden),
		)
	}
	return response.Success(c, "Job added to your current list", job, nil)
}

// Complete POST /api/v1/jobs/:id/complete (assigned developer only)
func (h *Handlers) Complete(c *fiber.Ctx) error {
	id, ok := jobID(c)
	if !ok {
		return response.BadRequest(c, "Invalid UUID format for job id")
	}
	job, err := h.Service.Complete(c.UserContext(), id, middleware.GetAccount(c).AccountID)
	if err != nil {
		return response.FromError(c, err,
			response.On(jobsvc.ErrJobNotFound, fiber.StatusNotFound),
			response.On(jobsvc.ErrCannotComplete, fiber.StatusConflict),
		)
	}
	return response.Success(c, "Job marked completed. Awaiting company verification.", job, nil)
}

package developers

import (
	"errors"

	holdsvc "ventry-backend/internal/application/holdings"
	jobsvc "ventry-backend/internal/application/jobs"
	"ventry-backend/internal/middleware"
	"ventry-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Holdings *holdsvc.Service
	Jobs     *jobsvc.Service
}

var (
	errBadDeveloperID = errors.New("Invalid UUID format for developer id")
	errNotSelf        = errors.New("User is Forbidden from performing this action")
)

var selfRules = []response.Rule{
	response.On(errBadDeveloperID, fiber.StatusBadRequest),
	response.On(errNotSelf, fiber.StatusForbidden),
}

// self returns the developer id in the path when it names the actor.
func self(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, errBadDeveloperID
	}
	acct := middleware.GetAccount(c)
	if acct == nil || acct.AccountID != id {
		return uuid.Nil, errNotSelf
	}
	return id, nil
}

// ViewHoldings GET /api/v1/developers/:id/holdings (the developer only)
func (h *Handlers) ViewHoldings(c *fiber.Ctx) error {
	id, err := self(c)
	if err != nil {
		return response.FromError(c, err, selfRules...)
	}
	p, err := h.Holdings.ForDeveloper(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err, response.On(holdsvc.ErrDeveloperNotFound, fiber.StatusNotFound))
	}
	return response.Success(c, "Holdings fetched", p, nil)
}

// CurrentJobs GET /api/v1/developers/:id/jobs (the developer only)
func (h *Handlers) CurrentJobs(c *fiber.Ctx) error {
	id, err := self(c)
	if err != nil {
		return response.FromError(c, err, selfRules...)
	}
	jobs, err := h.Jobs.ListCurrent(c.UserContext(), id)
	if err != nil {
		return err
	}
	return response.Success(c, "Current jobs fetched", jobs, fiber.Map{"count": len(jobs)})
}

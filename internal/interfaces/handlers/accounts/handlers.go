package accounts

import (
	accountsvc "ventry-backend/internal/application/accounts"
	"ventry-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *accountsvc.Service
}

// Create POST /api/v1/accounts
func (h *Handlers) Create(c *fiber.Ctx) error {
	var body accountsvc.CreateInput
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	out, err := h.Service.Create(c.UserContext(), body)
	if err != nil {
		return response.FromError(c, err,
			response.On(accountsvc.ErrInvalidEmail, fiber.StatusBadRequest),
			response.On(accountsvc.ErrInvalidRole, fiber.StatusBadRequest),
			response.On(accountsvc.ErrEmailTaken, fiber.StatusConflict),
		)
	}
	return response.SuccessCreated(c, "Account created", out, nil)
}

// Get GET /api/v1/accounts/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid UUID format for account id")
	}
	acct, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err, response.On(accountsvc.ErrAccountMissing, fiber.StatusNotFound))
	}
	return response.Success(c, "Account fetched", acct, nil)
}

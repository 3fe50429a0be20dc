package middleware

import (
	"errors"

	"ventry-backend/internal/domain"
	"ventry-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccountHeader carries the caller's account id, asserted by the upstream gateway.
const AccountHeader = "X-Account-Id"

const accountLocal = "account"

// Actor loads the account named in AccountHeader into Locals. Requests without the
// header pass through anonymously; an unknown or malformed id is rejected with 401.
func Actor(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(AccountHeader)
		if raw == "" {
			return c.Next()
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		var acct domain.Account
		if err := db.WithContext(c.UserContext()).Where("account_id = ?", id).First(&acct).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.Unauthorized(c, "Unauthorized")
			}
			return err
		}
		c.Locals(accountLocal, &acct)
		return c.Next()
	}
}

// RequireRole ensures an actor with the given role. 401 without an actor, 403 for
// any other role.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		acct := GetAccount(c)
		if acct == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		if acct.Role != role {
			return response.Error(c, "User is Forbidden from performing this action", fiber.StatusForbidden, nil)
		}
		return c.Next()
	}
}

// GetAccount returns the actor loaded by Actor, or nil.
func GetAccount(c *fiber.Ctx) *domain.Account {
	acct, _ := c.Locals(accountLocal).(*domain.Account)
	return acct
}

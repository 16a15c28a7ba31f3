package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/teleiosites/shepherd-backend/internal/models"
	"github.com/teleiosites/shepherd-backend/internal/storage"
)

const bridgeUserLocalsKey = "bridgeUser"

// RequireConnectionCode authenticates a polling bridge by its pairing code
// (the ?code= query parameter). The code resolves to exactly one user, and
// through that user to the organization whose queue the bridge may drain.
func RequireConnectionCode(store storage.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		code := c.Query("code")
		if code == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Connection code is required",
			})
		}

		user, err := store.GetUserByCodePrefix(code)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Invalid connection code",
			})
		}

		c.Locals(bridgeUserLocalsKey, user)
		return c.Next()
	}
}

// BridgeUser returns the user resolved by RequireConnectionCode.
func BridgeUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(bridgeUserLocalsKey).(*models.User)
	return user
}

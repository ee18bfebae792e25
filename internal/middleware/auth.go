package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/vitrine/internal/flows"
	"github.com/example/vitrine/internal/utils"
)

const storefrontContextKey = "currentStorefront"

// StorefrontAuth validates the storefront JWT and loads the visitor's
// storefront into context. A valid token for a storefront this instance no
// longer holds reopens it empty.
func StorefrontAuth(secret string, registry *flows.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		storefrontID, err := utils.ParseStorefrontToken(secret, parts[1])
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(storefrontContextKey, registry.Open(storefrontID))
		return c.Next()
	}
}

// GetStorefront extracts the authenticated storefront from context.
func GetStorefront(c *fiber.Ctx) (*flows.Storefront, bool) {
	sf, ok := c.Locals(storefrontContextKey).(*flows.Storefront)
	return sf, ok && sf != nil
}

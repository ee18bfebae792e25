package middleware

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/vitrine/internal/utils"
)

// AdminAuth checks HTTP basic credentials against the configured user and
// bcrypt hash. Without a hash every request is refused.
func AdminAuth(user, passwordHash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if passwordHash == "" {
			return fiber.NewError(fiber.StatusServiceUnavailable, "admin access is not configured")
		}

		authHeader := c.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Basic") {
			return unauthorized(c)
		}

		decoded, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			return unauthorized(c)
		}

		name, password, ok := strings.Cut(string(decoded), ":")
		if !ok || subtle.ConstantTimeCompare([]byte(name), []byte(user)) != 1 {
			return unauthorized(c)
		}
		if !utils.CheckPassword(passwordHash, password) {
			return unauthorized(c)
		}

		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx) error {
	c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="admin"`)
	return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
}

package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CORS allows the dashboard origin to call the owner API with its session cookie.
// An empty origin disables cross-origin access.
func CORS(allowedOrigin string) fiber.Handler {
	allowedOrigin = strings.TrimRight(allowedOrigin, "/")
	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		if allowedOrigin == "" || origin != allowedOrigin {
			if c.Method() == fiber.MethodOptions && origin != "" {
				return c.SendStatus(fiber.StatusForbidden)
			}
			return c.Next()
		}

		c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
		c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
		c.Set(fiber.HeaderAccessControlAllowMethods, "GET, POST, PATCH, DELETE, OPTIONS")
		c.Set(fiber.HeaderAccessControlAllowHeaders, "Origin, Content-Type, Accept, Authorization")
		c.Set(fiber.HeaderAccessControlMaxAge, "86400")
		c.Vary(fiber.HeaderOrigin)

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}

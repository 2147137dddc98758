package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	httpUtil "github.com/petermyo/DecentralizeFileShare/internal/http/util"
)

const sessionKey = "session"

// RequireSession rejects requests without a valid owner session. The token is
// read from the session cookie or a Bearer Authorization header.
func RequireSession(sessions *httpUtil.SessionManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(httpUtil.SessionCookie)
		if raw == "" {
			if auth := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
				raw = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "not signed in"})
		}

		claims, err := sessions.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "session expired"})
		}
		c.Locals(sessionKey, claims)
		return c.Next()
	}
}

// RequireAdmin must run after RequireSession.
func RequireAdmin(isAdmin func(ownerID string) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := SessionFrom(c)
		if claims == nil || !isAdmin(claims.OwnerID()) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin only"})
		}
		return c.Next()
	}
}

// SessionFrom returns the claims stored by RequireSession.
func SessionFrom(c *fiber.Ctx) *httpUtil.SessionClaims {
	claims, _ := c.Locals(sessionKey).(*httpUtil.SessionClaims)
	return claims
}

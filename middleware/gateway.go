// middleware/gateway.go
package middleware

import (
	"financial-matrix/utils"

	"github.com/gofiber/fiber/v2"
)

const (
	LoginPath          = "/auth"
	AdminDeniedMessage = "Access denied. You must be an administrator to view this page."
)

// RequireAuthenticated sends anonymous visitors to the login page.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if AccessFrom(c).IsAnonymous() {
			utils.Component("gate").Info("anonymous request redirected", "path", c.Path())
			return c.Redirect(LoginPath, fiber.StatusSeeOther)
		}
		return c.Next()
	}
}

// RequireAdmin redirects anonymous visitors and refuses everyone but administrators.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		access := AccessFrom(c)
		if access.IsAnonymous() {
			return c.Redirect(LoginPath, fiber.StatusSeeOther)
		}
		if !access.IsAdmin() {
			utils.Component("gate").Warn("non-admin denied", "user_id", access.Identity.ID, "path", c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": AdminDeniedMessage,
			})
		}
		return c.Next()
	}
}

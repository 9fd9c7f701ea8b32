// handlers/dashboard.go
package handlers

import (
	"errors"

	"financial-matrix/middleware"
	"financial-matrix/services"

	"github.com/gofiber/fiber/v2"
)

type inviteRequest struct {
	Email    string `json:"email" form:"email"`
	WhatsApp string `json:"whatsapp" form:"whatsapp"`
}

func SetupDashboardRoutes(app *fiber.App, dashboard *services.DashboardService, publicOrigin string) {
	secured := app.Group("/dashboard", middleware.RequireAuthenticated())

	secured.Get("/", func(c *fiber.Ctx) error {
		sess := middleware.SessionFrom(c)
		d, err := dashboard.Load(c.UserContext(), sess.AccessToken, requestOrigin(c, publicOrigin))
		if errors.Is(err, services.ErrLoginRequired) {
			return c.JSON(fiber.Map{
				"message":        services.LoginPromptMessage,
				"login_required": true,
				"login_url":      middleware.LoginPath,
			})
		}
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(d)
	})

	secured.Post("/invite", func(c *fiber.Ctx) error {
		var req inviteRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}

		access := middleware.AccessFrom(c)
		res, err := dashboard.Invite(c.UserContext(), access.Identity.ID, requestOrigin(c, publicOrigin), req.Email, req.WhatsApp)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})
}

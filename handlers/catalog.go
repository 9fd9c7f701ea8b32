// handlers/catalog.go
package handlers

import (
	"financial-matrix/middleware"
	"financial-matrix/services"

	"github.com/gofiber/fiber/v2"
)

func SetupCatalogRoutes(app *fiber.App, catalog *services.CatalogService) {
	// 🔓 Public views
	app.Get("/free-bots", func(c *fiber.Ctx) error {
		bots, err := catalog.FreeBots(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"bots": bots})
	})

	app.Get("/unlockable-bots", func(c *fiber.Ctx) error {
		bots, err := catalog.UnlockableBots(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"bots": bots})
	})

	// 🔐 Downloads are recorded against the signed-in user
	app.Post("/bots/:id/download", middleware.RequireAuthenticated(), func(c *fiber.Ctx) error {
		access := middleware.AccessFrom(c)
		d, err := catalog.RecordDownload(c.UserContext(), access.Identity.ID, c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"download": d,
			"file_url": d.Bot.FileURL,
		})
	})
}

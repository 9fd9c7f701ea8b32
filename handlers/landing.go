// handlers/landing.go
package handlers

import (
	"github.com/gofiber/fiber/v2"
)

func SetupLandingRoutes(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"name":        "Financial Matrix",
			"headline":    "Unlock Your Financial Potential with AI Bots",
			"tagline":     "Automate your trading, optimize investments, and achieve financial freedom with our cutting-edge AI-powered bots.",
			"get_started": "/auth",
			"routes": fiber.Map{
				"free_bots":       "/free-bots",
				"unlockable_bots": "/unlockable-bots",
				"auth":            "/auth",
				"dashboard":       "/dashboard",
				"admin":           "/admin",
			},
		})
	})
}

// handlers/admin.go
package handlers

import (
	"mime/multipart"
	"strconv"
	"strings"

	"financial-matrix/middleware"
	"financial-matrix/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAdminRoutes(app *fiber.App, catalog *services.CatalogService) {
	// 🔐 Administrators only; anonymous visitors are redirected to /auth
	admin := app.Group("/admin", middleware.RequireAdmin())

	admin.Get("/", func(c *fiber.Ctx) error {
		bots, err := catalog.ListBots(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		users, err := catalog.ListUsers(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"bots": bots, "users": users})
	})

	admin.Get("/bots", func(c *fiber.Ctx) error {
		bots, err := catalog.ListBots(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"bots": bots})
	})

	admin.Post("/bots", func(c *fiber.Ctx) error {
		var in services.BotInput
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}

		bot, err := catalog.CreateBot(c.UserContext(), in, botFiles(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message": "Bot added successfully!",
			"bot":     bot,
		})
	})

	update := func(c *fiber.Ctx) error {
		in, err := parseBotUpdate(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		bot, err := catalog.UpdateBot(c.UserContext(), c.Params("id"), in, botFiles(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"message": "Bot updated successfully!",
			"bot":     bot,
		})
	}
	admin.Put("/bots/:id", update)
	admin.Patch("/bots/:id", update)

	admin.Delete("/bots/:id", func(c *fiber.Ctx) error {
		if err := catalog.DeleteBot(c.UserContext(), c.Params("id")); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Bot deleted successfully!"})
	})

	admin.Get("/users", func(c *fiber.Ctx) error {
		users, err := catalog.ListUsers(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"users": users})
	})
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm)
}

func botFiles(c *fiber.Ctx) services.BotFiles {
	if !isMultipart(c) {
		return services.BotFiles{}
	}
	return services.BotFiles{
		BotFile:       optionalFile(c, "bot_file"),
		BacktestImage: optionalFile(c, "backtest_image"),
	}
}

func optionalFile(c *fiber.Ctx, field string) *multipart.FileHeader {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil
	}
	return fh
}

// parseBotUpdate reads a partial update. Multipart forms only touch the fields
// that are present.
func parseBotUpdate(c *fiber.Ctx) (services.BotUpdateInput, error) {
	var in services.BotUpdateInput
	if !isMultipart(c) {
		if err := c.BodyParser(&in); err != nil {
			return in, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		return in, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return in, fiber.NewError(fiber.StatusBadRequest, "invalid multipart form")
	}
	value := func(key string) *string {
		if vs, ok := form.Value[key]; ok && len(vs) > 0 {
			v := vs[0]
			return &v
		}
		return nil
	}

	in.Title = value("title")
	in.Description = value("description")
	in.Type = value("type")
	in.FileURL = value("file_url")
	in.BacktestImageURL = value("backtest_image_url")
	if raw := value("referral_required"); raw != nil {
		b, err := strconv.ParseBool(*raw)
		if err != nil {
			return in, fiber.NewError(fiber.StatusBadRequest, "referral_required must be a boolean")
		}
		in.ReferralRequired = &b
	}
	return in, nil
}

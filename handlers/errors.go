// handlers/errors.go
package handlers

import (
	"errors"
	"strings"

	"financial-matrix/services"
	"financial-matrix/store"
	"financial-matrix/utils"

	"github.com/gofiber/fiber/v2"
)

// respondError maps service errors onto status codes. Anything unrecognised is a
// 500 carrying the error text, scoped to the view that failed.
func respondError(c *fiber.Ctx, err error) error {
	var verr *utils.ValidationError
	var aerr *services.AuthError

	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
	case errors.As(err, &aerr):
		return c.Status(aerr.Status).JSON(fiber.Map{"error": aerr.Message})
	case errors.Is(err, services.ErrProfileMissing):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.Is(err, store.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrBotLocked):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrUploadsDisabled),
		errors.Is(err, services.ErrInviteTargetMissing),
		errors.Is(err, services.ErrReferralCodeMissing):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	utils.Component("http").Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

// requestOrigin is the configured public origin, falling back to the request's base URL.
func requestOrigin(c *fiber.Ctx, publicOrigin string) string {
	if publicOrigin != "" {
		return strings.TrimRight(publicOrigin, "/")
	}
	return c.BaseURL()
}

// middleware/sse_auth.go
package middleware

import (
	"strings"

	"financial-matrix/services"
	"financial-matrix/utils"

	"github.com/gofiber/fiber/v2"
)

// SSEAuthMiddleware validates the `token` query param, since EventSource
// cannot send an Authorization header.
//
// Usage:
//
//	app.Get("/session/stream", middleware.SSEAuthMiddleware(sessions, gate), handler)
func SSEAuthMiddleware(sessions services.SessionProvider, gate *services.AccessGate) fiber.Handler {
	log := utils.Component("sse_auth")

	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		if accessToken == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token in query",
			})
		}

		sess, err := sessions.GetSession(c.UserContext(), accessToken)
		if err != nil {
			log.Warn("stream token rejected", "token_prefix", accessToken[:min(10, len(accessToken))], "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		attach(c, sess, gate.Resolve(c.UserContext(), sess))
		log.Debug("stream authenticated", "user_id", sess.Identity.ID)
		return c.Next()
	}
}

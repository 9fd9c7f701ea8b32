// middleware/auth.go
package middleware

import (
	"errors"
	"strings"

	"financial-matrix/services"
	"financial-matrix/utils"

	"github.com/gofiber/fiber/v2"
)

type contextKey string

const (
	SessionContextKey contextKey = "session"
	AccessContextKey  contextKey = "access"
)

// SessionMiddleware resolves the Bearer token (if any) into a session and an
// access decision. Requests without a usable token continue as anonymous.
func SessionMiddleware(sessions services.SessionProvider, gate *services.AccessGate) fiber.Handler {
	log := utils.Component("session")

	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		attach(c, nil, services.Access{Capability: services.CapabilityAnonymous})
		if token == "" {
			return c.Next()
		}

		sess, err := sessions.GetSession(c.UserContext(), token)
		if err != nil {
			if !errors.Is(err, services.ErrNoSession) {
				log.Error("session lookup failed", "path", c.Path(), "error", err)
			}
			return c.Next()
		}

		access := gate.Resolve(c.UserContext(), sess)
		attach(c, sess, access)
		log.Debug("session attached", "user_id", sess.Identity.ID, "capability", access.Capability, "path", c.Path())
		return c.Next()
	}
}

func attach(c *fiber.Ctx, sess *services.Session, access services.Access) {
	c.Locals(string(SessionContextKey), sess)
	c.Locals(string(AccessContextKey), access)
}

// SessionFrom returns the session attached by SessionMiddleware, or nil.
func SessionFrom(c *fiber.Ctx) *services.Session {
	sess, _ := c.Locals(string(SessionContextKey)).(*services.Session)
	return sess
}

// AccessFrom returns the access decision attached by SessionMiddleware.
func AccessFrom(c *fiber.Ctx) services.Access {
	access, ok := c.Locals(string(AccessContextKey)).(services.Access)
	if !ok {
		return services.Access{Capability: services.CapabilityAnonymous}
	}
	return access
}

// bearerToken parses "Bearer <token>"; a raw value is accepted as well.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

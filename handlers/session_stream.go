// handlers/session_stream.go
package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"financial-matrix/middleware"
	"financial-matrix/services"
	"financial-matrix/utils"

	"github.com/gofiber/fiber/v2"
)

const streamKeepAlive = 15 * time.Second

func SetupSessionStreamRoutes(app *fiber.App, sessions services.SessionProvider, gate *services.AccessGate) {
	app.Get("/session/stream", middleware.SSEAuthMiddleware(sessions, gate), func(c *fiber.Ctx) error {
		return streamSessionEvents(c, sessions)
	})
}

// streamSessionEvents pushes session-change events for the caller's identity
// until the client goes away or the identity signs out.
func streamSessionEvents(c *fiber.Ctx, sessions services.SessionProvider) error {
	sess := middleware.SessionFrom(c)
	identityID := sess.Identity.ID
	log := utils.Component("sse").With("user_id", identityID)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	events := make(chan services.SessionEvent, 16)
	unsubscribe := sessions.Subscribe(func(ev services.SessionEvent) {
		if ev.IdentityID != identityID {
			return
		}
		select {
		case events <- ev:
		default:
			log.Warn("session stream buffer full, event dropped", "event", ev.Type)
		}
	})

	done := c.Context().Done()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()

		ticker := time.NewTicker(streamKeepAlive)
		defer ticker.Stop()

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case ev := <-events:
				payload, _ := json.Marshal(ev)
				fmt.Fprintf(w, "event: session\ndata: %s\n\n", payload)
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}
				if ev.Type == services.SessionSignedOut {
					log.Info("identity signed out, closing stream")
					return
				}

			case <-ticker.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}

			case <-done:
				return
			}
		}
	})

	return nil
}

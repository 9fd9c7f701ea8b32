// handlers/auth.go
package handlers

import (
	"strings"

	"financial-matrix/middleware"
	"financial-matrix/services"
	"financial-matrix/utils"

	"github.com/gofiber/fiber/v2"
)

const (
	SignupSuccessMessage = "Sign up successful! Please check your email to confirm."
	SignupWelcomeMessage = "Sign up successful! You are now logged in."
	LoginSuccessMessage  = "Logged in successfully!"
)

type credentialsRequest struct {
	Email    string `json:"email" form:"email" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
	Referral string `json:"referral" form:"referral"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func SetupAuthRoutes(app *fiber.App, sessions services.SessionProvider, referrals *services.ReferralService) {
	validate := utils.NewValidator()
	log := utils.Component("auth")

	// Signup form; a shared referral link lands here with ?referral=<code>
	app.Get("/auth", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"referral": c.Query("referral"),
			"modes":    []string{"login", "signup"},
		})
	})

	app.Post("/auth/signup", func(c *fiber.Ctx) error {
		var req credentialsRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if err := validate.Struct(req); err != nil {
			return respondError(c, err)
		}
		if strings.TrimSpace(req.Referral) == "" {
			req.Referral = c.Query("referral")
		}

		res, err := referrals.Signup(c.UserContext(), req.Email, req.Password, req.Referral)
		if err != nil {
			log.Info("signup rejected", "email", req.Email, "error", err)
			return respondError(c, err)
		}

		// no session back means the provider is waiting on email confirmation
		message := SignupWelcomeMessage
		switch {
		case res.ProfileErr != nil:
			message = services.ProfileFailedMessage
		case res.Session == nil:
			message = SignupSuccessMessage
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message":           message,
			"user":              res.Identity,
			"session":           res.Session,
			"profile":           res.Profile,
			"profile_created":   res.ProfileErr == nil,
			"referral_credited": res.ReferrerID != "",
		})
	})

	app.Post("/auth/login", func(c *fiber.Ctx) error {
		var req credentialsRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if err := validate.Struct(req); err != nil {
			return respondError(c, err)
		}

		sess, err := sessions.SignIn(c.UserContext(), req.Email, req.Password)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"message": LoginSuccessMessage,
			"session": sess,
		})
	})

	app.Post("/auth/refresh", func(c *fiber.Ctx) error {
		var req refreshRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if err := validate.Struct(req); err != nil {
			return respondError(c, err)
		}

		sess, err := sessions.Refresh(c.UserContext(), req.RefreshToken)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"session": sess})
	})

	app.Post("/auth/logout", func(c *fiber.Ctx) error {
		sess := middleware.SessionFrom(c)
		if sess == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "not logged in"})
		}
		signOut := sessions.SignOut
		if c.Query("scope") == "global" {
			signOut = sessions.SignOutEverywhere
		}
		if err := signOut(c.UserContext(), sess.AccessToken); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Logged out"})
	})

	app.Get("/auth/session", func(c *fiber.Ctx) error {
		access := middleware.AccessFrom(c)
		return c.JSON(fiber.Map{
			"session":    middleware.SessionFrom(c),
			"capability": access.Capability,
			"profile":    access.Profile,
		})
	})
}

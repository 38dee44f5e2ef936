package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"advisorjournal/internal/crypto"
	"advisorjournal/internal/repository"
	"advisorjournal/internal/services"
)

// respondError maps engine errors to status codes; anything unrecognised is logged and
// answered with the fallback message
func respondError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrNoAPIKey):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	case errors.Is(err, services.ErrInvalidModelResponse):
		// The cause stays in the logs; the user sees the retry message only
		log.Printf("⚠️ [API] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": services.ErrInvalidModelResponse.Error()})
	case errors.Is(err, crypto.ErrNoMasterKey):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "API key storage is not configured"})
	}

	log.Printf("❌ [API] %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": fallback})
}

// requireUser returns the authenticated user ID, or false when the request has none
func requireUser(c *fiber.Ctx) (string, bool) {
	userID, ok := c.Locals("user_id").(string)
	return userID, ok && userID != ""
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "Authentication required",
	})
}

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"advisorjournal/internal/models"
	"advisorjournal/internal/services"
)

// SettingsHandler handles per-user settings
type SettingsHandler struct {
	settings *services.SettingsService
	roster   *services.AdvisorRoster
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings *services.SettingsService, roster *services.AdvisorRoster) *SettingsHandler {
	return &SettingsHandler{settings: settings, roster: roster}
}

// Get returns the user's settings and the available advisors. The API key is never returned.
// GET /api/v1/settings
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return unauthorized(c)
	}

	settings, err := h.settings.Get(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err, "Failed to load settings")
	}

	return c.JSON(fiber.Map{
		"settings": h.settings.Response(settings),
		"advisors": h.roster.Profiles(),
	})
}

// Update changes the fields present in the body
// PUT /api/v1/settings
func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return unauthorized(c)
	}

	var req models.UpdateSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	settings, err := h.settings.Update(c.UserContext(), userID, &req)
	if err != nil {
		return respondError(c, err, "Failed to update settings")
	}

	return c.JSON(fiber.Map{
		"settings": h.settings.Response(settings),
	})
}

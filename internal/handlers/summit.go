package handlers

import (
	"github.com/gofiber/fiber/v2"

	"advisorjournal/internal/models"
	"advisorjournal/internal/services"
)

// SummitHandler handles the follow-up conversation about an entry
type SummitHandler struct {
	summit   *services.SummitService
	settings *services.SettingsService
}

// NewSummitHandler creates a new summit handler
func NewSummitHandler(summit *services.SummitService, settings *services.SettingsService) *SummitHandler {
	return &SummitHandler{summit: summit, settings: settings}
}

// GetTranscript returns the entry and its summit turns
// GET /api/v1/entries/:id/summit
func (h *SummitHandler) GetTranscript(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return unauthorized(c)
	}

	entry, turns, err := h.summit.Transcript(c.UserContext(), userID, paramID(c))
	if err != nil {
		return respondError(c, err, "Failed to retrieve summit")
	}
	if turns == nil {
		turns = []models.SummitTurn{}
	}

	return c.JSON(fiber.Map{
		"entry": entry,
		"turns": turns,
	})
}

// PostMessage adds the user's message and returns the advisors' next turn.
// A model failure answers 502 with a retry message; the user's message is kept.
// POST /api/v1/entries/:id/summit
func (h *SummitHandler) PostMessage(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return unauthorized(c)
	}

	var req models.SummitMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	sess, err := h.settings.Session(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err, "Failed to load settings")
	}
	if sess.APIKey == "" {
		return respondError(c, services.ErrNoAPIKey, "")
	}

	turn, err := h.summit.Reply(c.UserContext(), sess, paramID(c), req.Message)
	if err != nil {
		return respondError(c, err, "Failed to continue summit")
	}

	return c.Status(fiber.StatusCreated).JSON(turn)
}

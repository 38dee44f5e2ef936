package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"advisorjournal/internal/models"
	"advisorjournal/internal/services"
)

// JournalHandler handles journal entry endpoints
type JournalHandler struct {
	journal  *services.JournalService
	settings *services.SettingsService
}

// NewJournalHandler creates a new journal handler
func NewJournalHandler(journal *services.JournalService, settings *services.SettingsService) *JournalHandler {
	return &JournalHandler{journal: journal, settings: settings}
}

// paramID copies the :id route parameter out of fasthttp's reusable buffer
func paramID(c *fiber.Ctx) string {
	return utils.CopyString(c.Params("id"))
}

// CreateEntry stores an entry and starts advisor feedback, goal checks and attribute extraction.
// The response does not wait for any of them.
// POST /api/v1/entries
func (h *JournalHandler) CreateEntry(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return unauthorized(c)
	}

	var req models.CreateEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	sess, err := h.settings.Session(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err, "Failed to load settings")
	}

	entry, _, err := h.journal.SubmitEntry(c.UserContext(), sess, req.Text)
	if err != nil {
		return respondError(c, err, "Failed to save entry")
	}

	return c.Status(fiber.StatusCreated).JSON(entry)
}

// GetEntry returns one entry, with feedback once it has been attached
// GET /api/v1/entries/:id
func (h *JournalHandler) GetEntry(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return unauthorized(c)
	}

	entry, err := h.journal.GetEntry(c.UserContext(), userID, paramID(c))
	if err != nil {
		return respondError(c, err, "Failed to retrieve entry")
	}
	return c.JSON(entry)
}

// ListEntries returns the newest entries first
// GET /api/v1/entries?limit=20
func (h *JournalHandler) ListEntries(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return unauthorized(c)
	}

	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	entries, err := h.journal.ListEntries(c.UserContext(), userID, limit)
	if err != nil {
		return respondError(c, err, "Failed to retrieve entries")
	}
	if entries == nil {
		entries = []models.Entry{}
	}

	return c.JSON(fiber.Map{
		"entries": entries,
	})
}

// DeleteEntry removes an entry and its summit transcript
// DELETE /api/v1/entries/:id
func (h *JournalHandler) DeleteEntry(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.journal.DeleteEntry(c.UserContext(), userID, paramID(c)); err != nil {
		return respondError(c, err, "Failed to delete entry")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"advisorjournal/internal/services"
)

// ContextHandler shows the user what the advisors are told about them
type ContextHandler struct {
	aggregator *services.ContextAggregator
	settings   *services.SettingsService
}

// NewContextHandler creates a new context handler
func NewContextHandler(aggregator *services.ContextAggregator, settings *services.SettingsService) *ContextHandler {
	return &ContextHandler{aggregator: aggregator, settings: settings}
}

// Preview renders the context block for a draft entry. Attribute relevance needs a model
// call, so without a stored key the block carries deadlines and goals only. Previewing never
// counts as an access for attribute eviction.
// GET /api/v1/context/preview?text=...
func (h *ContextHandler) Preview(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return unauthorized(c)
	}

	sess, err := h.settings.Session(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err, "Failed to load settings")
	}

	text := utils.CopyString(c.Query("text"))
	return c.JSON(fiber.Map{
		"context": h.aggregator.BuildPreview(c.UserContext(), sess, text),
	})
}

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"advisorjournal/internal/models"
	"advisorjournal/internal/services"
)

// AttributeHandler exposes the user's attribute memory
type AttributeHandler struct {
	memory *services.AttributeMemoryService
}

// NewAttributeHandler creates a new attribute handler
func NewAttributeHandler(memory *services.AttributeMemoryService) *AttributeHandler {
	return &AttributeHandler{memory: memory}
}

// List returns the stored attributes, newest first
// GET /api/v1/attributes
func (h *AttributeHandler) List(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return unauthorized(c)
	}

	attrs, err := h.memory.List(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err, "Failed to retrieve attributes")
	}
	if attrs == nil {
		attrs = []models.UserAttribute{}
	}

	return c.JSON(fiber.Map{
		"attributes": attrs,
		"capacity":   models.AttributeCapacity,
	})
}

// Delete removes one attribute
// DELETE /api/v1/attributes/:id
func (h *AttributeHandler) Delete(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.memory.Delete(c.UserContext(), userID, paramID(c)); err != nil {
		return respondError(c, err, "Failed to delete attribute")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

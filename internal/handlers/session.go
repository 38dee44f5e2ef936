package handlers

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
)

// WeeklyResetter clears last week's goal completions when a new week has started
type WeeklyResetter interface {
	ResetIfDue(ctx context.Context, userID string) (bool, error)
}

// SessionHandler runs the work due when a user opens the app
type SessionHandler struct {
	resetter WeeklyResetter
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(resetter WeeklyResetter) *SessionHandler {
	return &SessionHandler{resetter: resetter}
}

// Start performs the weekly goal reset if this is the first session of the week.
// A failed reset does not block the session.
// POST /api/v1/session/start
func (h *SessionHandler) Start(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return unauthorized(c)
	}

	reset, err := h.resetter.ResetIfDue(c.UserContext(), userID)
	if err != nil {
		log.Printf("⚠️ [WEEKLY-RESET] Session reset failed for user %s: %v", userID, err)
	}

	return c.JSON(fiber.Map{
		"weekly_reset": reset,
	})
}

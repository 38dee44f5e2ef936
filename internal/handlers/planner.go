package handlers

import (
	"github.com/gofiber/fiber/v2"

	"advisorjournal/internal/models"
	"advisorjournal/internal/services"
)

// PlannerHandler handles goal and deadline endpoints
type PlannerHandler struct {
	planner *services.PlannerService
}

// NewPlannerHandler creates a new planner handler
func NewPlannerHandler(planner *services.PlannerService) *PlannerHandler {
	return &PlannerHandler{planner: planner}
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Invalid request body",
	})
}

// CreateGoal POST /api/v1/goals
func (h *PlannerHandler) CreateGoal(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return unauthorized(c)
	}

	var req services.CreateGoalRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	goal, err := h.planner.CreateGoal(c.UserContext(), userID, &req)
	if err != nil {
		return respondError(c, err, "Failed to create goal")
	}
	return c.Status(fiber.StatusCreated).JSON(goal)
}

// ListGoals GET /api/v1/goals
func (h *PlannerHandler) ListGoals(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return unauthorized(c)
	}

	goals, err := h.planner.ListGoals(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err, "Failed to retrieve goals")
	}
	if goals == nil {
		goals = []models.Goal{}
	}
	return c.JSON(fiber.Map{"goals": goals})
}

// UpdateGoal PUT /api/v1/goals/:id
func (h *PlannerHandler) UpdateGoal(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return unauthorized(c)
	}

	var req services.UpdateGoalRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	goal, err := h.planner.UpdateGoal(c.UserContext(), userID, paramID(c), &req)
	if err != nil {
		return respondError(c, err, "Failed to update goal")
	}
	return c.JSON(goal)
}

// DeleteGoal DELETE /api/v1/goals/:id
func (h *PlannerHandler) DeleteGoal(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.planner.DeleteGoal(c.UserContext(), userID, paramID(c)); err != nil {
		return respondError(c, err, "Failed to delete goal")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SetCompletion PUT /api/v1/goals/:id/completion
func (h *PlannerHandler) SetCompletion(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return unauthorized(c)
	}

	var req services.SetCompletionRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	if err := h.planner.SetCompletion(c.UserContext(), userID, paramID(c), &req); err != nil {
		return respondError(c, err, "Failed to update goal")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateDeadline POST /api/v1/deadlines
func (h *PlannerHandler) CreateDeadline(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return unauthorized(c)
	}

	var req services.CreateDeadlineRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	deadline, err := h.planner.CreateDeadline(c.UserContext(), userID, &req)
	if err != nil {
		return respondError(c, err, "Failed to create deadline")
	}
	return c.Status(fiber.StatusCreated).JSON(deadline)
}

// ListDeadlines GET /api/v1/deadlines
func (h *PlannerHandler) ListDeadlines(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return unauthorized(c)
	}

	deadlines, err := h.planner.ListDeadlines(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err, "Failed to retrieve deadlines")
	}
	if deadlines == nil {
		deadlines = []models.Deadline{}
	}
	return c.JSON(fiber.Map{"deadlines": deadlines})
}

// SetDeadlineStatus PUT /api/v1/deadlines/:id/status
func (h *PlannerHandler) SetDeadlineStatus(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return unauthorized(c)
	}

	var req struct {
		Status models.DeadlineStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	if err := h.planner.SetDeadlineStatus(c.UserContext(), userID, paramID(c), req.Status); err != nil {
		return respondError(c, err, "Failed to update deadline")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteDeadline DELETE /api/v1/deadlines/:id
func (h *PlannerHandler) DeleteDeadline(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.planner.DeleteDeadline(c.UserContext(), userID, paramID(c)); err != nil {
		return respondError(c, err, "Failed to delete deadline")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

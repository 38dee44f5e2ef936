package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"advisorjournal/internal/models"
)

// CreateGoalRequest is the body of POST /api/v1/goals
type CreateGoalRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Type        models.GoalType `json:"type"`
	Target      int             `json:"target"`
	PlannedDays []int           `json:"planned_days"`
}

// UpdateGoalRequest is the body of PUT /api/v1/goals/:id. Nil fields are left unchanged.
type UpdateGoalRequest struct {
	Title       *string            `json:"title,omitempty"`
	Description *string            `json:"description,omitempty"`
	Status      *models.GoalStatus `json:"status,omitempty"`
	Target      *int               `json:"target,omitempty"`
	PlannedDays *[]int             `json:"planned_days,omitempty"`
}

// SetCompletionRequest is the body of PUT /api/v1/goals/:id/completion
type SetCompletionRequest struct {
	Date   string                  `json:"date"` // YYYY-MM-DD
	Status models.CompletionStatus `json:"status"`
}

// CreateDeadlineRequest is the body of POST /api/v1/deadlines
type CreateDeadlineRequest struct {
	Title   string    `json:"title"`
	DueDate time.Time `json:"due_date"`
}

// PlannerService manages the goals and deadlines the advisors see as context
type PlannerService struct {
	goals     GoalRepository
	deadlines DeadlineRepository
}

// NewPlannerService creates a planner service
func NewPlannerService(goals GoalRepository, deadlines DeadlineRepository) *PlannerService {
	return &PlannerService{goals: goals, deadlines: deadlines}
}

// CreateGoal validates and stores a new goal. With planned days the target is the day count.
func (p *PlannerService) CreateGoal(ctx context.Context, userID string, req *CreateGoalRequest) (*models.Goal, error) {
	goal := &models.Goal{
		UserID:      userID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Type:        req.Type,
		Status:      models.GoalStatusInProgress,
		Target:      req.Target,
		PlannedDays: req.PlannedDays,
	}
	if goal.Type == "" {
		goal.Type = models.GoalTypeWeekly
	}
	switch goal.Type {
	case models.GoalTypeWeekly, models.GoalTypeMonthly, models.GoalTypeYearly:
	default:
		return nil, fmt.Errorf("%w: unknown goal type %q", ErrValidation, goal.Type)
	}
	if len(goal.PlannedDays) > 0 && goal.Target == 0 {
		goal.Target = len(goal.PlannedDays)
	}
	if err := goal.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if err := p.goals.CreateGoal(ctx, goal); err != nil {
		return nil, fmt.Errorf("failed to save goal: %w", err)
	}
	return goal, nil
}

// ListGoals returns every goal the user has, in creation order
func (p *PlannerService) ListGoals(ctx context.Context, userID string) ([]models.Goal, error) {
	goals, err := p.goals.ListGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	return goals, nil
}

// UpdateGoal edits a goal's fields and lifecycle status. Changing the planned days without
// a target moves the target to the new day count. Completion history is kept.
func (p *PlannerService) UpdateGoal(ctx context.Context, userID, goalID string, req *UpdateGoalRequest) (*models.Goal, error) {
	goal, err := p.goals.GetGoal(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		goal.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		goal.Description = strings.TrimSpace(*req.Description)
	}
	if req.Status != nil {
		switch *req.Status {
		case models.GoalStatusInProgress, models.GoalStatusPaused, models.GoalStatusCompleted:
			goal.Status = *req.Status
		default:
			return nil, fmt.Errorf("%w: unknown goal status %q", ErrValidation, *req.Status)
		}
	}
	if req.PlannedDays != nil {
		goal.PlannedDays = *req.PlannedDays
		if req.Target == nil && len(goal.PlannedDays) > 0 {
			goal.Target = len(goal.PlannedDays)
		}
	}
	if req.Target != nil {
		goal.Target = *req.Target
	}
	if err := goal.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if err := p.goals.UpdateGoal(ctx, goal); err != nil {
		return nil, err
	}
	log.Printf("🎯 [PLANNER] Updated goal %s for user %s (status %s)", goal.ID, userID, goal.Status)
	return goal, nil
}

// DeleteGoal removes a goal together with its completion history
func (p *PlannerService) DeleteGoal(ctx context.Context, userID, goalID string) error {
	return p.goals.DeleteGoal(ctx, userID, goalID)
}

// SetCompletion records the outcome of one day for a goal
func (p *PlannerService) SetCompletion(ctx context.Context, userID, goalID string, req *SetCompletionRequest) error {
	if _, err := time.Parse(models.DateKeyLayout, req.Date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}
	switch req.Status {
	case models.CompletionComplete, models.CompletionMissed, models.CompletionPending:
	default:
		return fmt.Errorf("%w: unknown completion status %q", ErrValidation, req.Status)
	}
	return p.goals.SetCompletion(ctx, userID, goalID, req.Date, req.Status)
}

// CreateDeadline stores a pending deadline
func (p *PlannerService) CreateDeadline(ctx context.Context, userID string, req *CreateDeadlineRequest) (*models.Deadline, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: deadline title is required", ErrValidation)
	}
	if req.DueDate.IsZero() {
		return nil, fmt.Errorf("%w: due_date is required", ErrValidation)
	}

	deadline := &models.Deadline{
		UserID:  userID,
		Title:   title,
		DueDate: req.DueDate,
		Status:  models.DeadlineStatusPending,
	}
	if err := p.deadlines.CreateDeadline(ctx, deadline); err != nil {
		return nil, fmt.Errorf("failed to save deadline: %w", err)
	}
	return deadline, nil
}

// ListDeadlines returns pending deadlines most urgent first, followed by completed ones by due date
func (p *PlannerService) ListDeadlines(ctx context.Context, userID string) ([]models.Deadline, error) {
	all, err := p.deadlines.ListDeadlines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deadlines: %w", err)
	}

	ordered := MostUrgentDeadlines(all, -1)
	var done []models.Deadline
	for _, d := range all {
		if d.Status != models.DeadlineStatusPending {
			done = append(done, d)
		}
	}
	sort.SliceStable(done, func(i, j int) bool { return done[i].DueDate.Before(done[j].DueDate) })
	return append(ordered, done...), nil
}

// SetDeadlineStatus marks a deadline pending or completed
func (p *PlannerService) SetDeadlineStatus(ctx context.Context, userID, deadlineID string, status models.DeadlineStatus) error {
	switch status {
	case models.DeadlineStatusPending, models.DeadlineStatusCompleted:
	default:
		return fmt.Errorf("%w: unknown deadline status %q", ErrValidation, status)
	}
	return p.deadlines.SetDeadlineStatus(ctx, userID, deadlineID, status)
}

// DeleteDeadline removes a deadline
func (p *PlannerService) DeleteDeadline(ctx context.Context, userID, deadlineID string) error {
	return p.deadlines.DeleteDeadline(ctx, userID, deadlineID)
}

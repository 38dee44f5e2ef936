package models

import (
	"errors"
	"fmt"
	"time"
)

// GoalType is the cadence of a goal
type GoalType string

const (
	GoalTypeWeekly  GoalType = "weekly"
	GoalTypeMonthly GoalType = "monthly"
	GoalTypeYearly  GoalType = "yearly"
)

// GoalStatus is the lifecycle state of a goal
type GoalStatus string

const (
	GoalStatusInProgress GoalStatus = "in_progress"
	GoalStatusCompleted  GoalStatus = "completed"
	GoalStatusPaused     GoalStatus = "paused"
)

// CompletionStatus is the recorded outcome for one calendar day
type CompletionStatus string

const (
	CompletionComplete CompletionStatus = "complete"
	CompletionMissed   CompletionStatus = "missed"
	CompletionPending  CompletionStatus = "pending"
)

// DateKeyLayout is the layout of CompletionStatus map keys (YYYY-MM-DD)
const DateKeyLayout = "2006-01-02"

// Goal is a recurring target the user tracks day by day
type Goal struct {
	ID          string     `bson:"_id" json:"id"`
	UserID      string     `bson:"userId" json:"user_id"`
	Title       string     `bson:"title" json:"title"`
	Description string     `bson:"description,omitempty" json:"description,omitempty"`
	Type        GoalType   `bson:"type" json:"type"`
	Status      GoalStatus `bson:"status" json:"status"`
	Target      int        `bson:"target" json:"target"`

	// PlannedDays holds weekday indices (0=Sunday..6=Saturday). Empty means any day counts.
	PlannedDays []int `bson:"plannedDays,omitempty" json:"planned_days,omitempty"`

	// CompletionStatus is keyed by DateKeyLayout and cleared once per week by the reset job
	CompletionStatus map[string]CompletionStatus `bson:"completionStatus,omitempty" json:"completion_status,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
}

// EffectiveTarget returns the weekly target, which is the planned-day count when days are planned
func (g *Goal) EffectiveTarget() int {
	if len(g.PlannedDays) > 0 {
		return len(g.PlannedDays)
	}
	return g.Target
}

// IsPlannedOn reports whether the weekday falls inside the goal's planned-day filter
func (g *Goal) IsPlannedOn(day time.Weekday) bool {
	if len(g.PlannedDays) == 0 {
		return true
	}
	for _, d := range g.PlannedDays {
		if d == int(day) {
			return true
		}
	}
	return false
}

// StatusOn returns the recorded status for a date, if any
func (g *Goal) StatusOn(date time.Time) (CompletionStatus, bool) {
	status, ok := g.CompletionStatus[date.Format(DateKeyLayout)]
	return status, ok
}

// Validate checks the invariants the goal form enforces
func (g *Goal) Validate() error {
	if g.Title == "" {
		return errors.New("goal title is required")
	}
	seen := make(map[int]bool, len(g.PlannedDays))
	for _, d := range g.PlannedDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("planned day %d out of range 0-6", d)
		}
		if seen[d] {
			return fmt.Errorf("planned day %d listed twice", d)
		}
		seen[d] = true
	}
	if len(g.PlannedDays) > 0 && g.Target != len(g.PlannedDays) {
		return fmt.Errorf("target %d must equal planned day count %d", g.Target, len(g.PlannedDays))
	}
	if g.Target <= 0 {
		return errors.New("goal target must be positive")
	}
	return nil
}

// DeadlineStatus is the state of a deadline
type DeadlineStatus string

const (
	DeadlineStatusPending   DeadlineStatus = "pending"
	DeadlineStatusCompleted DeadlineStatus = "completed"
)

// Deadline is a dated commitment shown to advisors as urgency context
type Deadline struct {
	ID        string         `bson:"_id" json:"id"`
	UserID    string         `bson:"userId" json:"user_id"`
	Title     string         `bson:"title" json:"title"`
	DueDate   time.Time      `bson:"dueDate" json:"due_date"`
	Status    DeadlineStatus `bson:"status" json:"status"`
	CreatedAt time.Time      `bson:"createdAt" json:"created_at"`
}

// GoalProgress is the evaluator's verdict on whether an entry advanced a goal
type GoalProgress struct {
	ProgressMade bool   `json:"progressMade"`
	Reasoning    string `json:"reasoning"`
}

package services

import (
	"context"
	"time"

	"advisorjournal/internal/models"
)

// Persistence the engine consumes. Implementations live in internal/repository;
// every query is scoped to one user.

// EntryRepository stores journal entries
type EntryRepository interface {
	// CreateEntry assigns ID and CreatedAt when they are empty
	CreateEntry(ctx context.Context, entry *models.Entry) error
	GetEntry(ctx context.Context, userID, entryID string) (*models.Entry, error)
	// ListEntries returns at most limit entries, newest first
	ListEntries(ctx context.Context, userID string, limit int) ([]models.Entry, error)
	AttachFeedback(ctx context.Context, userID, entryID string, feedback models.FeedbackSet) error
	DeleteEntry(ctx context.Context, userID, entryID string) error
}

// GoalRepository stores goals and their day-by-day completion map
type GoalRepository interface {
	CreateGoal(ctx context.Context, goal *models.Goal) error
	GetGoal(ctx context.Context, userID, goalID string) (*models.Goal, error)
	ListGoals(ctx context.Context, userID string) ([]models.Goal, error)
	ActiveWeeklyGoals(ctx context.Context, userID string) ([]models.Goal, error)
	SetCompletion(ctx context.Context, userID, goalID, dateKey string, status models.CompletionStatus) error
	// ResetWeeklyCompletion clears completionStatus on every weekly goal and returns how many changed
	ResetWeeklyCompletion(ctx context.Context, userID string) (int64, error)
	// UpdateGoal writes the editable fields (title, description, status, target, planned days)
	// and leaves the completion map alone
	UpdateGoal(ctx context.Context, goal *models.Goal) error
	DeleteGoal(ctx context.Context, userID, goalID string) error
}

// DeadlineRepository stores deadlines. ListDeadlines makes no ordering promise.
type DeadlineRepository interface {
	CreateDeadline(ctx context.Context, deadline *models.Deadline) error
	ListDeadlines(ctx context.Context, userID string) ([]models.Deadline, error)
	SetDeadlineStatus(ctx context.Context, userID, deadlineID string, status models.DeadlineStatus) error
	DeleteDeadline(ctx context.Context, userID, deadlineID string) error
}

// AttributeRepository stores the bounded attribute memory
type AttributeRepository interface {
	// List returns attributes in insertion order
	List(ctx context.Context, userID string) ([]models.UserAttribute, error)
	Count(ctx context.Context, userID string) (int, error)
	// OldestAccessed returns the attribute with the smallest LastAccessed, earliest insertion on ties
	OldestAccessed(ctx context.Context, userID string) (*models.UserAttribute, error)
	Insert(ctx context.Context, attr *models.UserAttribute) error
	Delete(ctx context.Context, userID, attributeID string) error
	Touch(ctx context.Context, userID string, attributeIDs []string, at time.Time) error
}

// SummitRepository stores summit transcripts
type SummitRepository interface {
	AppendTurn(ctx context.Context, turn *models.SummitTurn) error
	// ListTurns returns the transcript oldest first
	ListTurns(ctx context.Context, userID, entryID string) ([]models.SummitTurn, error)
	DeleteTurns(ctx context.Context, userID, entryID string) error
}

// SettingsRepository stores per-user settings
type SettingsRepository interface {
	GetSettings(ctx context.Context, userID string) (*models.UserSettings, error)
	// SaveSettings writes the user-editable fields only; LastWeeklyReset belongs to MarkWeeklyReset
	SaveSettings(ctx context.Context, settings *models.UserSettings) error
	MarkWeeklyReset(ctx context.Context, userID string, at time.Time) error
	ListUserIDs(ctx context.Context) ([]string, error)
}

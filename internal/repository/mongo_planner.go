package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"advisorjournal/internal/database"
	"advisorjournal/internal/models"
)

// GoalRepository persists goals in MongoDB
type GoalRepository struct {
	mongodb *database.MongoDB
}

// NewGoalRepository creates a new goal repository
func NewGoalRepository(mongodb *database.MongoDB) *GoalRepository {
	return &GoalRepository{mongodb: mongodb}
}

// CreateGoal inserts a goal
func (r *GoalRepository) CreateGoal(ctx context.Context, goal *models.Goal) error {
	if goal.ID == "" {
		goal.ID = newID()
	}
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = time.Now()
	}
	if _, err := r.mongodb.Collection(database.CollectionGoals).InsertOne(ctx, goal); err != nil {
		return fmt.Errorf("failed to insert goal: %w", err)
	}
	return nil
}

// GetGoal loads one of the user's goals
func (r *GoalRepository) GetGoal(ctx context.Context, userID, goalID string) (*models.Goal, error) {
	var goal models.Goal
	err := r.mongodb.Collection(database.CollectionGoals).FindOne(ctx, bson.M{"_id": goalID, "userId": userID}).Decode(&goal)
	if err != nil {
		return nil, notFound(err)
	}
	return &goal, nil
}

// ListGoals returns all of the user's goals, oldest first
func (r *GoalRepository) ListGoals(ctx context.Context, userID string) ([]models.Goal, error) {
	return r.find(ctx, bson.M{"userId": userID})
}

// ActiveWeeklyGoals returns weekly goals that are in progress
func (r *GoalRepository) ActiveWeeklyGoals(ctx context.Context, userID string) ([]models.Goal, error) {
	return r.find(ctx, bson.M{
		"userId": userID,
		"type":   models.GoalTypeWeekly,
		"status": models.GoalStatusInProgress,
	})
}

func (r *GoalRepository) find(ctx context.Context, filter bson.M) ([]models.Goal, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.mongodb.Collection(database.CollectionGoals).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer cursor.Close(ctx)

	var goals []models.Goal
	if err := cursor.All(ctx, &goals); err != nil {
		return nil, fmt.Errorf("failed to decode goals: %w", err)
	}
	return goals, nil
}

// SetCompletion records the status for one day of a goal
func (r *GoalRepository) SetCompletion(ctx context.Context, userID, goalID, dateKey string, status models.CompletionStatus) error {
	result, err := r.mongodb.Collection(database.CollectionGoals).UpdateOne(ctx,
		bson.M{"_id": goalID, "userId": userID},
		bson.M{"$set": bson.M{"completionStatus." + dateKey: status}},
	)
	if err != nil {
		return fmt.Errorf("failed to set goal completion: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetWeeklyCompletion clears the completion map of every weekly goal the user owns
func (r *GoalRepository) ResetWeeklyCompletion(ctx context.Context, userID string) (int64, error) {
	result, err := r.mongodb.Collection(database.CollectionGoals).UpdateMany(ctx,
		bson.M{"userId": userID, "type": models.GoalTypeWeekly},
		bson.M{"$unset": bson.M{"completionStatus": ""}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset weekly goals: %w", err)
	}
	return result.ModifiedCount, nil
}

// UpdateGoal sets the editable fields of a goal; completionStatus is never rewritten here
func (r *GoalRepository) UpdateGoal(ctx context.Context, goal *models.Goal) error {
	set := bson.M{
		"title":       goal.Title,
		"description": goal.Description,
		"status":      goal.Status,
		"target":      goal.Target,
		"plannedDays": goal.PlannedDays,
	}
	result, err := r.mongodb.Collection(database.CollectionGoals).UpdateOne(ctx,
		bson.M{"_id": goal.ID, "userId": goal.UserID},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteGoal removes one of the user's goals
func (r *GoalRepository) DeleteGoal(ctx context.Context, userID, goalID string) error {
	result, err := r.mongodb.Collection(database.CollectionGoals).DeleteOne(ctx, bson.M{"_id": goalID, "userId": userID})
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeadlineRepository persists deadlines in MongoDB
type DeadlineRepository struct {
	mongodb *database.MongoDB
}

// NewDeadlineRepository creates a new deadline repository
func NewDeadlineRepository(mongodb *database.MongoDB) *DeadlineRepository {
	return &DeadlineRepository{mongodb: mongodb}
}

// CreateDeadline inserts a deadline
func (r *DeadlineRepository) CreateDeadline(ctx context.Context, deadline *models.Deadline) error {
	if deadline.ID == "" {
		deadline.ID = newID()
	}
	if deadline.CreatedAt.IsZero() {
		deadline.CreatedAt = time.Now()
	}
	if _, err := r.mongodb.Collection(database.CollectionDeadlines).InsertOne(ctx, deadline); err != nil {
		return fmt.Errorf("failed to insert deadline: %w", err)
	}
	return nil
}

// ListDeadlines returns every deadline the user owns
func (r *DeadlineRepository) ListDeadlines(ctx context.Context, userID string) ([]models.Deadline, error) {
	cursor, err := r.mongodb.Collection(database.CollectionDeadlines).Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to query deadlines: %w", err)
	}
	defer cursor.Close(ctx)

	var deadlines []models.Deadline
	if err := cursor.All(ctx, &deadlines); err != nil {
		return nil, fmt.Errorf("failed to decode deadlines: %w", err)
	}
	return deadlines, nil
}

// SetDeadlineStatus marks a deadline pending or completed
func (r *DeadlineRepository) SetDeadlineStatus(ctx context.Context, userID, deadlineID string, status models.DeadlineStatus) error {
	result, err := r.mongodb.Collection(database.CollectionDeadlines).UpdateOne(ctx,
		bson.M{"_id": deadlineID, "userId": userID},
		bson.M{"$set": bson.M{"status": status}},
	)
	if err != nil {
		return fmt.Errorf("failed to update deadline: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDeadline removes one of the user's deadlines
func (r *DeadlineRepository) DeleteDeadline(ctx context.Context, userID, deadlineID string) error {
	result, err := r.mongodb.Collection(database.CollectionDeadlines).DeleteOne(ctx, bson.M{"_id": deadlineID, "userId": userID})
	if err != nil {
		return fmt.Errorf("failed to delete deadline: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

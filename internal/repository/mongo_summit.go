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

// SummitRepository persists summit transcripts in MongoDB
type SummitRepository struct {
	mongodb *database.MongoDB
}

// NewSummitRepository creates a new summit repository
func NewSummitRepository(mongodb *database.MongoDB) *SummitRepository {
	return &SummitRepository{mongodb: mongodb}
}

// AppendTurn stores one transcript turn
func (r *SummitRepository) AppendTurn(ctx context.Context, turn *models.SummitTurn) error {
	if turn.ID == "" {
		turn.ID = newID()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	if _, err := r.mongodb.Collection(database.CollectionSummitTurns).InsertOne(ctx, turn); err != nil {
		return fmt.Errorf("failed to insert summit turn: %w", err)
	}
	return nil
}

// ListTurns returns the transcript for one entry, oldest first
func (r *SummitRepository) ListTurns(ctx context.Context, userID, entryID string) ([]models.SummitTurn, error) {
	// ObjectID hex ids break millisecond ties in insertion order
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.mongodb.Collection(database.CollectionSummitTurns).Find(ctx,
		bson.M{"userId": userID, "entryId": entryID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query summit turns: %w", err)
	}
	defer cursor.Close(ctx)

	var turns []models.SummitTurn
	if err := cursor.All(ctx, &turns); err != nil {
		return nil, fmt.Errorf("failed to decode summit turns: %w", err)
	}
	return turns, nil
}

// DeleteTurns removes the whole transcript of one entry
func (r *SummitRepository) DeleteTurns(ctx context.Context, userID, entryID string) error {
	_, err := r.mongodb.Collection(database.CollectionSummitTurns).DeleteMany(ctx,
		bson.M{"userId": userID, "entryId": entryID})
	if err != nil {
		return fmt.Errorf("failed to delete summit turns: %w", err)
	}
	return nil
}

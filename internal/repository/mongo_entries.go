package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"advisorjournal/internal/database"
	"advisorjournal/internal/models"
)

// EntryRepository persists journal entries in MongoDB
type EntryRepository struct {
	mongodb *database.MongoDB
}

// NewEntryRepository creates a new entry repository
func NewEntryRepository(mongodb *database.MongoDB) *EntryRepository {
	return &EntryRepository{mongodb: mongodb}
}

func (r *EntryRepository) collection() *mongo.Collection {
	return r.mongodb.Collection(database.CollectionEntries)
}

// CreateEntry inserts a new entry
func (r *EntryRepository) CreateEntry(ctx context.Context, entry *models.Entry) error {
	if entry.ID == "" {
		entry.ID = newID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if _, err := r.collection().InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// GetEntry loads one of the user's entries
func (r *EntryRepository) GetEntry(ctx context.Context, userID, entryID string) (*models.Entry, error) {
	var entry models.Entry
	err := r.collection().FindOne(ctx, bson.M{"_id": entryID, "userId": userID}).Decode(&entry)
	if err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}

// ListEntries returns the user's most recent entries, newest first
func (r *EntryRepository) ListEntries(ctx context.Context, userID string, limit int) ([]models.Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(limit))
	cursor, err := r.collection().Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []models.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode entries: %w", err)
	}
	return entries, nil
}

// AttachFeedback sets the feedback set once; an entry that already has feedback is left untouched
func (r *EntryRepository) AttachFeedback(ctx context.Context, userID, entryID string, feedback models.FeedbackSet) error {
	filter := bson.M{
		"_id":      entryID,
		"userId":   userID,
		"feedback": bson.M{"$exists": false},
	}
	result, err := r.collection().UpdateOne(ctx, filter, bson.M{"$set": bson.M{"feedback": feedback}})
	if err != nil {
		return fmt.Errorf("failed to attach feedback: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEntry removes one of the user's entries
func (r *EntryRepository) DeleteEntry(ctx context.Context, userID, entryID string) error {
	result, err := r.collection().DeleteOne(ctx, bson.M{"_id": entryID, "userId": userID})
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

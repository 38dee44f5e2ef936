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

// AttributeRepository persists user attributes in MongoDB
type AttributeRepository struct {
	mongodb *database.MongoDB
}

// NewAttributeRepository creates a new attribute repository
func NewAttributeRepository(mongodb *database.MongoDB) *AttributeRepository {
	return &AttributeRepository{mongodb: mongodb}
}

func (r *AttributeRepository) collection() *mongo.Collection {
	return r.mongodb.Collection(database.CollectionAttributes)
}

// List returns the user's attributes in insertion order
func (r *AttributeRepository) List(ctx context.Context, userID string) ([]models.UserAttribute, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection().Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query attributes: %w", err)
	}
	defer cursor.Close(ctx)

	var attrs []models.UserAttribute
	if err := cursor.All(ctx, &attrs); err != nil {
		return nil, fmt.Errorf("failed to decode attributes: %w", err)
	}
	return attrs, nil
}

// Count returns how many attributes the user holds
func (r *AttributeRepository) Count(ctx context.Context, userID string) (int, error) {
	n, err := r.collection().CountDocuments(ctx, bson.M{"userId": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to count attributes: %w", err)
	}
	return int(n), nil
}

// OldestAccessed returns the least recently accessed attribute, earliest inserted on ties
func (r *AttributeRepository) OldestAccessed(ctx context.Context, userID string) (*models.UserAttribute, error) {
	opts := options.FindOne().SetSort(bson.D{
		{Key: "lastAccessed", Value: 1},
		{Key: "createdAt", Value: 1},
		{Key: "_id", Value: 1},
	})

	var attr models.UserAttribute
	if err := r.collection().FindOne(ctx, bson.M{"userId": userID}, opts).Decode(&attr); err != nil {
		return nil, notFound(err)
	}
	return &attr, nil
}

// Insert stores a new attribute
func (r *AttributeRepository) Insert(ctx context.Context, attr *models.UserAttribute) error {
	if attr.ID == "" {
		attr.ID = newID()
	}
	if _, err := r.collection().InsertOne(ctx, attr); err != nil {
		return fmt.Errorf("failed to insert attribute: %w", err)
	}
	return nil
}

// Delete removes one attribute. Deleting a missing attribute is not an error.
func (r *AttributeRepository) Delete(ctx context.Context, userID, attributeID string) error {
	if _, err := r.collection().DeleteOne(ctx, bson.M{"_id": attributeID, "userId": userID}); err != nil {
		return fmt.Errorf("failed to delete attribute: %w", err)
	}
	return nil
}

// Touch moves lastAccessed forward for the given attributes
func (r *AttributeRepository) Touch(ctx context.Context, userID string, attributeIDs []string, at time.Time) error {
	if len(attributeIDs) == 0 {
		return nil
	}
	_, err := r.collection().UpdateMany(ctx,
		bson.M{"userId": userID, "_id": bson.M{"$in": attributeIDs}},
		bson.M{"$set": bson.M{"lastAccessed": at}},
	)
	if err != nil {
		return fmt.Errorf("failed to touch attributes: %w", err)
	}
	return nil
}

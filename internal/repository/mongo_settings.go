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

// SettingsRepository persists user settings in MongoDB, one document per user
type SettingsRepository struct {
	mongodb *database.MongoDB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(mongodb *database.MongoDB) *SettingsRepository {
	return &SettingsRepository{mongodb: mongodb}
}

// GetSettings loads a user's settings
func (r *SettingsRepository) GetSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	var settings models.UserSettings
	err := r.mongodb.Collection(database.CollectionSettings).FindOne(ctx, bson.M{"_id": userID}).Decode(&settings)
	if err != nil {
		return nil, notFound(err)
	}
	return &settings, nil
}

// SaveSettings upserts the user-editable fields. lastWeeklyReset is left to MarkWeeklyReset
// so a concurrent reset is never written back with a stale value.
func (r *SettingsRepository) SaveSettings(ctx context.Context, settings *models.UserSettings) error {
	settings.UpdatedAt = time.Now()

	set := bson.M{
		"primaryModel":    settings.PrimaryModel,
		"utilityModel":    settings.UtilityModel,
		"enabledAdvisors": settings.EnabledAdvisors,
		"updatedAt":       settings.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if settings.EncryptedAPIKey == "" {
		update["$unset"] = bson.M{"encryptedApiKey": ""}
	} else {
		set["encryptedApiKey"] = settings.EncryptedAPIKey
	}

	_, err := r.mongodb.Collection(database.CollectionSettings).UpdateOne(ctx,
		bson.M{"_id": settings.UserID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// MarkWeeklyReset stamps the time the user's weekly goals were last cleared
func (r *SettingsRepository) MarkWeeklyReset(ctx context.Context, userID string, at time.Time) error {
	_, err := r.mongodb.Collection(database.CollectionSettings).UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"lastWeeklyReset": at}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to mark weekly reset: %w", err)
	}
	return nil
}

// ListUserIDs returns every user that has a settings document
func (r *SettingsRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	values, err := r.mongodb.Collection(database.CollectionSettings).Distinct(ctx, "_id", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

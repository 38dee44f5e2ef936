package models

import "time"

// UserSettings is the persisted per-user configuration
type UserSettings struct {
	UserID          string          `bson:"_id" json:"user_id"`
	EncryptedAPIKey string          `bson:"encryptedApiKey,omitempty" json:"-"` // AES-256-GCM, per-user key
	PrimaryModel    string          `bson:"primaryModel" json:"primary_model"`
	UtilityModel    string          `bson:"utilityModel" json:"utility_model"`
	EnabledAdvisors map[string]bool `bson:"enabledAdvisors" json:"enabled_advisors"`
	LastWeeklyReset *time.Time      `bson:"lastWeeklyReset,omitempty" json:"last_weekly_reset,omitempty"`
	UpdatedAt       time.Time       `bson:"updatedAt" json:"updated_at"`
}

// HasAPIKey reports whether a provider key has been stored
func (s *UserSettings) HasAPIKey() bool {
	return s.EncryptedAPIKey != ""
}

// UpdateSettingsRequest is the body of PUT /api/v1/settings.
// Nil fields are left unchanged.
type UpdateSettingsRequest struct {
	APIKey          *string         `json:"api_key,omitempty"`
	PrimaryModel    *string         `json:"primary_model,omitempty"`
	UtilityModel    *string         `json:"utility_model,omitempty"`
	EnabledAdvisors map[string]bool `json:"enabled_advisors,omitempty"`
}

// SettingsResponse is what GET /api/v1/settings returns; the key itself is never echoed
type SettingsResponse struct {
	HasAPIKey       bool            `json:"has_api_key"`
	PrimaryModel    string          `json:"primary_model"`
	UtilityModel    string          `json:"utility_model"`
	EnabledAdvisors map[string]bool `json:"enabled_advisors"`
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"

	"advisorjournal/internal/crypto"
	"advisorjournal/internal/models"
	"advisorjournal/internal/repository"
)

// ErrNoAPIKey is returned when a session is requested for a user who never stored a provider key
var ErrNoAPIKey = errors.New("no API key configured, add one in settings")

// SettingsService manages per-user settings and builds the Session every engine call receives
type SettingsService struct {
	repo         SettingsRepository
	encryption   *crypto.EncryptionService
	roster       *AdvisorRoster
	primaryModel string
	utilityModel string
	cache        *cache.Cache
}

// NewSettingsService creates a settings service. encryption may be nil, in which case
// storing an API key fails.
func NewSettingsService(repo SettingsRepository, encryption *crypto.EncryptionService, roster *AdvisorRoster, primaryModel, utilityModel string) *SettingsService {
	return &SettingsService{
		repo:         repo,
		encryption:   encryption,
		roster:       roster,
		primaryModel: primaryModel,
		utilityModel: utilityModel,
		cache:        cache.New(5*time.Minute, 10*time.Minute),
	}
}

// Get returns the user's settings, falling back to defaults for users who never saved any.
// Advisors added to the roster after the settings were saved start enabled.
func (s *SettingsService) Get(ctx context.Context, userID string) (*models.UserSettings, error) {
	if cached, found := s.cache.Get(userID); found {
		return cloneSettings(cached.(*models.UserSettings)), nil
	}

	settings, err := s.repo.GetSettings(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		settings = &models.UserSettings{UserID: userID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	s.applyDefaults(settings)
	s.cache.Set(userID, settings, cache.DefaultExpiration)
	return cloneSettings(settings), nil
}

// Update applies the non-nil fields of req and persists the result.
// An empty api_key removes the stored key.
func (s *SettingsService) Update(ctx context.Context, userID string, req *models.UpdateSettingsRequest) (*models.UserSettings, error) {
	// SaveSettings writes the editable fields only, so a weekly reset marked between this
	// read and the save survives
	s.cache.Delete(userID)
	settings, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.PrimaryModel != nil {
		model := strings.TrimSpace(*req.PrimaryModel)
		if model == "" {
			return nil, fmt.Errorf("%w: primary_model cannot be empty", ErrValidation)
		}
		settings.PrimaryModel = model
	}
	if req.UtilityModel != nil {
		model := strings.TrimSpace(*req.UtilityModel)
		if model == "" {
			return nil, fmt.Errorf("%w: utility_model cannot be empty", ErrValidation)
		}
		settings.UtilityModel = model
	}

	if len(req.EnabledAdvisors) > 0 {
		known := make(map[string]bool)
		for _, id := range s.roster.IDs() {
			known[id] = true
		}
		for id, enabled := range req.EnabledAdvisors {
			id = strings.ToLower(id)
			if !known[id] {
				return nil, fmt.Errorf("%w: unknown advisor %q", ErrValidation, id)
			}
			settings.EnabledAdvisors[id] = enabled
		}
	}

	if req.APIKey != nil {
		key := strings.TrimSpace(*req.APIKey)
		if key == "" {
			settings.EncryptedAPIKey = ""
		} else {
			if s.encryption == nil {
				return nil, crypto.ErrNoMasterKey
			}
			sealed, err := s.encryption.SealString(userID, key)
			if err != nil {
				return nil, fmt.Errorf("failed to encrypt API key: %w", err)
			}
			settings.EncryptedAPIKey = sealed
		}
	}

	if err := s.repo.SaveSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	s.cache.Delete(userID)

	log.Printf("⚙️ [SETTINGS] Updated settings for user %s", userID)
	return settings, nil
}

// Session decrypts the user's key and assembles the per-request session
func (s *SettingsService) Session(ctx context.Context, userID string) (*models.Session, error) {
	settings, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	sess := &models.Session{
		UserID:          userID,
		PrimaryModel:    settings.PrimaryModel,
		UtilityModel:    settings.UtilityModel,
		EnabledAdvisors: settings.EnabledAdvisors,
	}

	if settings.HasAPIKey() {
		if s.encryption == nil {
			return nil, crypto.ErrNoMasterKey
		}
		key, err := s.encryption.OpenString(userID, settings.EncryptedAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt API key: %w", err)
		}
		sess.APIKey = key
	}
	return sess, nil
}

// Response converts settings into the API shape, which never carries the key
func (s *SettingsService) Response(settings *models.UserSettings) *models.SettingsResponse {
	return &models.SettingsResponse{
		HasAPIKey:       settings.HasAPIKey(),
		PrimaryModel:    settings.PrimaryModel,
		UtilityModel:    settings.UtilityModel,
		EnabledAdvisors: settings.EnabledAdvisors,
	}
}

func (s *SettingsService) applyDefaults(settings *models.UserSettings) {
	if settings.PrimaryModel == "" {
		settings.PrimaryModel = s.primaryModel
	}
	if settings.UtilityModel == "" {
		settings.UtilityModel = s.utilityModel
	}
	if settings.EnabledAdvisors == nil {
		settings.EnabledAdvisors = make(map[string]bool)
	}
	for _, id := range s.roster.IDs() {
		if _, set := settings.EnabledAdvisors[id]; !set {
			settings.EnabledAdvisors[id] = true
		}
	}
}

func cloneSettings(src *models.UserSettings) *models.UserSettings {
	dst := *src
	dst.EnabledAdvisors = make(map[string]bool, len(src.EnabledAdvisors))
	for id, enabled := range src.EnabledAdvisors {
		dst.EnabledAdvisors[id] = enabled
	}
	if src.LastWeeklyReset != nil {
		at := *src.LastWeeklyReset
		dst.LastWeeklyReset = &at
	}
	return &dst
}

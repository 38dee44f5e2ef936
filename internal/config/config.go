package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"advisorjournal/internal/models"
)

// Config holds all application configuration
type Config struct {
	Port        string
	Environment string
	MongoDBURI  string
	RedisURL    string

	// Auth and encryption
	JWTSecret           string
	EncryptionMasterKey string // 64 hex characters, see crypto.GenerateMasterKey

	// Language model gateway
	LLMBaseURL       string
	LLMHTTPTimeout   time.Duration // 0 disables the client timeout; model calls are never aborted
	LLMRatePerSecond float64       // Per-user token bucket; 0 disables limiting
	LLMRateBurst     int
	AppReferer       string
	AppTitle         string

	// Defaults for users that have not saved settings yet
	DefaultPrimaryModel string
	DefaultUtilityModel string

	// Engine tuning
	AttributeCapacity      int
	RelevantAttributeLimit int
	GoalEvalConcurrency    int
	AdvisorProfilesPath    string // Optional YAML override of the built-in roster

	// Weekly goal reset
	WeeklyResetCron string
	Timezone        *time.Location

	AllowedOrigins []string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	var origins []string
	if raw := getEnv("ALLOWED_ORIGINS", ""); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}

	return &Config{
		Port:        getEnv("PORT", "3001"),
		Environment: strings.ToLower(getEnv("ENVIRONMENT", "development")),
		MongoDBURI:  getEnv("MONGODB_URI", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		JWTSecret:           getEnv("JWT_SECRET", ""),
		EncryptionMasterKey: getEnv("ENCRYPTION_MASTER_KEY", ""),

		LLMBaseURL:       strings.TrimRight(getEnv("LLM_BASE_URL", "https://openrouter.ai/api/v1"), "/"),
		LLMHTTPTimeout:   getDurationEnv("LLM_HTTP_TIMEOUT", 0),
		LLMRatePerSecond: getFloatEnv("LLM_RATE_PER_SECOND", 2),
		LLMRateBurst:     getIntEnv("LLM_RATE_BURST", 8),
		AppReferer:       getEnv("APP_REFERER", "http://localhost:5173"),
		AppTitle:         getEnv("APP_TITLE", "Advisor Journal"),

		DefaultPrimaryModel: getEnv("DEFAULT_PRIMARY_MODEL", "openai/gpt-4o"),
		DefaultUtilityModel: getEnv("DEFAULT_UTILITY_MODEL", "openai/gpt-4o-mini"),

		AttributeCapacity:      getIntEnv("ATTRIBUTE_CAPACITY", models.AttributeCapacity),
		RelevantAttributeLimit: getIntEnv("RELEVANT_ATTRIBUTE_LIMIT", models.DefaultRelevantAttributes),
		GoalEvalConcurrency:    getIntEnv("GOAL_EVAL_CONCURRENCY", 4),
		AdvisorProfilesPath:    getEnv("ADVISOR_PROFILES_PATH", ""),

		WeeklyResetCron: getEnv("WEEKLY_RESET_CRON", "5 0 * * 1"),
		Timezone:        getLocationEnv("TIMEZONE", time.Local),

		AllowedOrigins: origins,
	}
}

// IsProduction reports whether the server runs with production safeguards
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getLocationEnv(key string, defaultValue *time.Location) *time.Location {
	if value := os.Getenv(key); value != "" {
		loc, err := time.LoadLocation(value)
		if err == nil {
			return loc
		}
	}
	return defaultValue
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string

	// Database
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	// JWT
	JWTSecret string

	// OAuth - Google
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Sync
	SyncPageSize       int
	SyncLockTTL        time.Duration
	SyncRequestTimeout time.Duration

	// Cache
	StatusCacheTTL time.Duration

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		// Database
		MongoDBURL:  getEnv("MONGODB_URL", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGODB_DATABASE", "mailmirror"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),

		// OAuth - Google
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),

		// Sync
		SyncPageSize:       getEnvInt("SYNC_PAGE_SIZE", 50),
		SyncLockTTL:        time.Duration(getEnvInt("SYNC_LOCK_TTL_SEC", 120)) * time.Second,
		SyncRequestTimeout: time.Duration(getEnvInt("SYNC_REQUEST_TIMEOUT_SEC", 90)) * time.Second,

		// Cache
		StatusCacheTTL: time.Duration(getEnvInt("STATUS_CACHE_TTL_SEC", 10)) * time.Second,

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

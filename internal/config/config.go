package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	// Postgres (bookings read model + audit trail). Empty disables both.
	DatabaseURL string

	// Redis (availability layer store)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Portal auth. Empty secret disables JWT enforcement.
	PortalJWTSecret string

	CORSAllowedOrigins []string

	// Per-cell save behavior
	SaveTimeout time.Duration

	// External calendar feeds
	FeedSyncTimeout time.Duration
	FeedRefreshCron string

	// Profile-review notification email
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	ReviewInboxEmail  string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		PortalJWTSecret: getEnv("PORTAL_JWT_SECRET", ""),

		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", nil),

		SaveTimeout: getEnvAsDuration("SAVE_TIMEOUT", 10*time.Second),

		FeedSyncTimeout: getEnvAsDuration("FEED_SYNC_TIMEOUT", 15*time.Second),
		FeedRefreshCron: getEnv("FEED_REFRESH_CRON", "@every 6h"),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "StaffCal"),
		ReviewInboxEmail:  getEnv("REVIEW_INBOX_EMAIL", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application
type Config struct {
	Port           string
	Environment    string
	LogLevel       string
	AllowedOrigins []string

	DatabasePath string
	RedisURL     string // optional, enables the collect rate limiter

	Analytics AnalyticsConfig
	Admin     AdminConfig
	Feeds     FeedsConfig

	GeoIPDatabasePath  string
	CacheSweepSchedule string
	MetricsEnabled     bool
}

// AnalyticsConfig configures ingestion
type AnalyticsConfig struct {
	Salt              string
	FlushInterval     time.Duration
	FlushThreshold    int
	ElementTextMax    int
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// AdminConfig holds the dashboard credentials
type AdminConfig struct {
	User     string
	Password string
}

// FeedsConfig configures the remote feeds
type FeedsConfig struct {
	Mode string

	TwitterBearerToken string
	TwitterUserID      string
	TwitterCacheTTL    time.Duration

	GitHubToken    string
	GitHubOwner    string
	GitHubRepo     string
	GitHubCacheTTL time.Duration

	YouTubeAPIKey    string
	YouTubeChannelID string
	YouTubeCacheTTL  time.Duration

	BreakerFailures int
	BreakerTimeout  time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	environment := getEnv("ENVIRONMENT", "production")
	defaultFeedMode := "mock"
	if environment == "production" {
		defaultFeedMode = "cached"
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    environment,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
		DatabasePath:   getEnv("DATABASE_PATH", ""),
		RedisURL:       getEnv("REDIS_URL", ""),
		Analytics: AnalyticsConfig{
			Salt:              getEnv("ANALYTICS_SALT", ""),
			FlushInterval:     getDurationEnv("ANALYTICS_FLUSH_INTERVAL", 5*time.Second),
			FlushThreshold:    getIntEnv("ANALYTICS_FLUSH_THRESHOLD", 50),
			ElementTextMax:    getIntEnv("ANALYTICS_ELEMENT_TEXT_MAX", 50),
			RateLimitRequests: getIntEnv("COLLECT_RATE_LIMIT", 120),
			RateLimitWindow:   getDurationEnv("COLLECT_RATE_WINDOW", time.Hour),
		},
		Admin: AdminConfig{
			User:     getEnv("ADMIN_USER", "admin"),
			Password: getEnv("ADMIN_PASS", ""),
		},
		Feeds: FeedsConfig{
			Mode:               getEnv("FEED_MODE", defaultFeedMode),
			TwitterBearerToken: getEnv("TWITTER_BEARER_TOKEN", ""),
			TwitterUserID:      getEnv("TWITTER_USER_ID", ""),
			TwitterCacheTTL:    getDurationEnv("TWITTER_CACHE_TTL", 36*time.Hour),
			GitHubToken:        getEnv("GITHUB_TOKEN", ""),
			GitHubOwner:        getEnv("GITHUB_OWNER", "aleromano92"),
			GitHubRepo:         getEnv("GITHUB_REPO", "aleromano.com"),
			GitHubCacheTTL:     getDurationEnv("GITHUB_CACHE_TTL", 30*time.Minute),
			YouTubeAPIKey:      getEnv("YOUTUBE_API_KEY", ""),
			YouTubeChannelID:   getEnv("YOUTUBE_CHANNEL_ID", ""),
			YouTubeCacheTTL:    getDurationEnv("YOUTUBE_CACHE_TTL", 6*time.Hour),
			BreakerFailures:    getIntEnv("FEED_BREAKER_FAILURES", 3),
			BreakerTimeout:     getDurationEnv("FEED_BREAKER_TIMEOUT", time.Minute),
		},
		GeoIPDatabasePath:  getEnv("GEOIP_DATABASE_PATH", ""),
		CacheSweepSchedule: getEnv("CACHE_SWEEP_SCHEDULE", "@every 1h"),
		MetricsEnabled:     getBoolEnv("METRICS_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings
func (c *Config) Validate() error {
	var errs []error

	if c.DatabasePath == "" {
		errs = append(errs, errors.New("DATABASE_PATH is required"))
	}
	if c.Analytics.Salt == "" {
		errs = append(errs, errors.New("ANALYTICS_SALT is required"))
	}

	switch c.Feeds.Mode {
	case "mock", "live", "cached":
	default:
		errs = append(errs, fmt.Errorf("FEED_MODE must be mock, live or cached, got %q", c.Feeds.Mode))
	}

	if c.Analytics.FlushInterval <= 0 {
		errs = append(errs, errors.New("ANALYTICS_FLUSH_INTERVAL must be positive"))
	}
	if c.Analytics.FlushThreshold <= 0 {
		errs = append(errs, errors.New("ANALYTICS_FLUSH_THRESHOLD must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable (e.g. "5s", "36h") with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// parseOrigins parses comma-separated origins into a slice
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

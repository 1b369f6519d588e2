package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// devTokenSecret signs identity tokens when TOKEN_SECRET is unset outside
// production.
const devTokenSecret = "mediaconnect-development-secret"

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	RedisURL    string
	SQLitePath  string

	// Identity tokens
	TokenSecret string

	// Engine tuning
	SearchDebounce time.Duration
	SearchLimit    int
	TrendLimit     int

	// HTTP
	AllowedOrigins []string

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		SQLitePath:     getEnv("SQLITE_PATH", "./data/mediaconnect.db"),
		TokenSecret:    os.Getenv("TOKEN_SECRET"),
		SearchDebounce: getDuration("SEARCH_DEBOUNCE", 300*time.Millisecond),
		SearchLimit:    getInt("SEARCH_LIMIT", 20),
		TrendLimit:     getInt("TREND_LIMIT", 5),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
	}

	// Parse whitelist (comma-separated IPs or CIDRs)
	cfg.RateLimitWhitelist = splitList(os.Getenv("RATE_LIMIT_WHITELIST"))

	// In production, require redis and a real signing secret
	if cfg.Env == "production" {
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
		if cfg.TokenSecret == "" {
			panic("TOKEN_SECRET is required in production")
		}
	}
	if cfg.TokenSecret == "" {
		cfg.TokenSecret = devTokenSecret
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}

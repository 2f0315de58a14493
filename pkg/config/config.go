package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"staging"`
	Port     string `env:"PORT" envDefault:"5000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	JWTSecret string        `env:"JWT_SECRET_KEY"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	// Storage
	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"app.db"`
	RedisURL    string `env:"REDIS_URL"`

	// Gemini
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	GeminiModel     string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	IsGeminiEnabled bool   `env:"IS_GEMINI_ENABLED" envDefault:"false"`

	// Runtime tunables
	RateLimitWindowSeconds int `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"10"`
	RateLimitCapacity      int `env:"RATE_LIMIT_CAPACITY" envDefault:"5"`
	UserConcurrencyLimit   int `env:"USER_CONCURRENCY_LIMIT" envDefault:"2"`
	DuplicateWindowSeconds int `env:"DUPLICATE_WINDOW_SECONDS" envDefault:"45"`
	ChatCacheTTLSeconds    int `env:"CHAT_CACHE_TTL_SECONDS" envDefault:"600"`
	ChatCacheMaxItems      int `env:"CHAT_CACHE_MAX_ITEMS" envDefault:"500"`

	// Pagination
	HistoryPageSize    int `env:"HISTORY_PAGE_SIZE" envDefault:"50"`
	HistoryMaxPageSize int `env:"HISTORY_MAX_PAGE_SIZE" envDefault:"100"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000,http://localhost:5173,http://127.0.0.1:5173"`
}

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func (c *Config) DuplicateWindow() time.Duration {
	return time.Duration(c.DuplicateWindowSeconds) * time.Second
}

func (c *Config) ChatCacheTTL() time.Duration {
	return time.Duration(c.ChatCacheTTLSeconds) * time.Second
}

// loadDotEnv loads .env unless APP_ENV is production. A missing file is fine.
func loadDotEnv() error {
	if os.Getenv("APP_ENV") == "production" {
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads configuration from the environment, after .env outside
// production, and validates it.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if !slices.Contains([]string{"development", "staging", "production"}, c.AppEnv) {
		return fmt.Errorf("APP_ENV must be 'development', 'staging' or 'production', got %q", c.AppEnv)
	}
	if !slices.Contains([]string{"sqlite", "postgres", "mysql"}, c.DBDriver) {
		return fmt.Errorf("DB_DRIVER must be 'sqlite', 'postgres' or 'mysql', got %q", c.DBDriver)
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return errors.New("JWT_SECRET_KEY must be set in production")
	}
	if c.HistoryPageSize <= 0 || c.HistoryPageSize > c.HistoryMaxPageSize {
		return fmt.Errorf("HISTORY_PAGE_SIZE must be between 1 and %d", c.HistoryMaxPageSize)
	}
	return nil
}

// LogSummary prints the values that matter when debugging an environment.
func (c *Config) LogSummary() {
	log.Printf("[config] AppEnv=%s Port=%s DBDriver=%s RedisConfigured=%v", c.AppEnv, c.Port, c.DBDriver, c.RedisURL != "")
	log.Printf("[config] IsGeminiEnabled=%v GeminiAPIKeyPresent=%v GeminiModel=%s", c.IsGeminiEnabled, c.GeminiAPIKey != "", c.GeminiModel)
	log.Printf("[config] RateLimit window=%ds capacity=%d userConc=%d dupWindow=%ds cacheTTL=%ds cacheMax=%d pageSize=%d",
		c.RateLimitWindowSeconds, c.RateLimitCapacity, c.UserConcurrencyLimit, c.DuplicateWindowSeconds, c.ChatCacheTTLSeconds, c.ChatCacheMaxItems, c.HistoryPageSize)
	if c.JWTSecret == "" {
		log.Warn("[config] JWT_SECRET_KEY is empty; tokens are signed with an empty key")
	}
}

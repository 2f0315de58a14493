package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("JWT_SECRET_KEY", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 50, cfg.HistoryPageSize)
	assert.Equal(t, 10*time.Second, cfg.RateLimitWindow())
	assert.Equal(t, 45*time.Second, cfg.DuplicateWindow())
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Len(t, cfg.CORSOrigins, 4)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("HISTORY_PAGE_SIZE", "20")
	t.Setenv("IS_GEMINI_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 20, cfg.HistoryPageSize)
	assert.True(t, cfg.IsGeminiEnabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "bad env", mutate: func(c *Config) { c.AppEnv = "prod" }, wantErr: "APP_ENV"},
		{name: "bad driver", mutate: func(c *Config) { c.DBDriver = "oracle" }, wantErr: "DB_DRIVER"},
		{name: "production needs secret", mutate: func(c *Config) { c.AppEnv = "production"; c.JWTSecret = "" }, wantErr: "JWT_SECRET_KEY"},
		{name: "page size too big", mutate: func(c *Config) { c.HistoryPageSize = 500 }, wantErr: "HISTORY_PAGE_SIZE"},
		{name: "ok"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{AppEnv: "staging", DBDriver: "sqlite", HistoryPageSize: 50, HistoryMaxPageSize: 100}
			if tc.mutate != nil {
				tc.mutate(cfg)
			}
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

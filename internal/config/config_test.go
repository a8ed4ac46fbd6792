package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.Equal(t, Default(), cfg)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr, "default config should be written")

	// Reading the generated file back yields the same values.
	again, _, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("addr: \":9000\"\nhistory_limit: 10\npersist_timeout: 2s\ncors_allowed_origins:\n  - https://chat.example\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("WIREDM_HISTORY_LIMIT", "25")
	t.Setenv("WIREDM_SEND_RATE_LIMIT", "30")

	cfg, _, err := Load(nil, path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr, "file overrides default")
	assert.Equal(t, 25, cfg.HistoryLimit, "env overrides file")
	assert.Equal(t, 30, cfg.SendRateLimit, "env overrides default")
	assert.Equal(t, 2*time.Second, cfg.PersistTimeout)
	assert.Equal(t, []string{"https://chat.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "sqlite", cfg.DBDriver)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, false},
		{"postgres without url", func(c *Config) { c.DBDriver = "postgres" }, false},
		{"postgres with url", func(c *Config) {
			c.DBDriver = "postgres"
			c.DatabaseURL = "postgres://localhost/wiredm"
		}, true},
		{"empty secret", func(c *Config) { c.JWTSecret = "" }, false},
		{"negative history", func(c *Config) { c.HistoryLimit = -1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestUpdateFrom(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":7000", RedisURL: "redis://localhost:6379/0"})

	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, Default().ShutdownTimeout, cfg.ShutdownTimeout)
}

func TestUpdateFromCoversEveryField(t *testing.T) {
	other := Config{
		Addr:               ":9000",
		ReadHeaderTimeout:  time.Second,
		ShutdownTimeout:    2 * time.Second,
		LogLevel:           "debug",
		LogFormat:          "json",
		DBDriver:           DriverPostgres,
		DatabasePath:       "other.db",
		DatabaseURL:        "postgres://localhost/wiredm",
		RedisURL:           "redis://localhost:6379/1",
		JWTSecret:          "override-secret",
		JWTIssuer:          "issuer",
		JWTAudience:        "audience",
		JWTTTL:             time.Minute,
		CORSAllowedOrigins: []string{"https://chat.example.com"},
		MaxMessageBytes:    1024,
		SendRateLimit:      7,
		HistoryLimit:       9,
		PersistWorkers:     11,
		PersistTimeout:     3 * time.Second,
		RetryAttempts:      5,
		RetryBackoff:       time.Millisecond,
	}

	cfg := Default()
	cfg.UpdateFrom(other)
	assert.Equal(t, other, cfg, "every non-zero field must be applied")

	unchanged := Default()
	unchanged.UpdateFrom(Config{})
	assert.Equal(t, Default(), unchanged)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("PRESENCE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 300, cfg.Presence.DefaultBreakSeconds)
	assert.Equal(t, 4, cfg.Presence.CodeLength)
	assert.Equal(t, 30*time.Minute, cfg.Presence.StaleAfter)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
database:
  driver: sqlite
  path: /tmp/test.db
logging:
  level: debug
  format: text
presence:
  default_break_seconds: 120
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("PRESENCE_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 120, cfg.Presence.DefaultBreakSeconds)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600))

	t.Setenv("PRESENCE_CONFIG", path)
	t.Setenv("PRESENCE_SERVER_PORT", "7070")
	t.Setenv("PRESENCE_STALE_AFTER", "10m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 10*time.Minute, cfg.Presence.StaleAfter)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"sqlite without path", func(c *Config) { c.Database.Driver = "sqlite"; c.Database.Path = "" }},
		{"postgres without host", func(c *Config) { c.Database.Driver = "postgres"; c.Database.Host = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"zero break duration", func(c *Config) { c.Presence.DefaultBreakSeconds = 0 }},
		{"code too short", func(c *Config) { c.Presence.CodeLength = 2 }},
		{"code too long", func(c *Config) { c.Presence.CodeLength = 12 }},
		{"zero stale window", func(c *Config) { c.Presence.StaleAfter = 0 }},
		{"min above max connections", func(c *Config) {
			c.Database.MinConnections = 50
			c.Database.MaxConnections = 10
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.Host = "db.internal"
	cfg.Database.Port = 5433
	cfg.Database.User = "svc"
	cfg.Database.Password = "hunter2"
	cfg.Database.Database = "presence"

	dsn := cfg.PostgresDSN()
	assert.Contains(t, dsn, "host=db.internal")
	assert.Contains(t, dsn, "port=5433")
	assert.Contains(t, dsn, "user=svc")
	assert.Contains(t, dsn, "dbname=presence")
}

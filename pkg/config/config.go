package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Auth     AuthConfig     `yaml:"auth"`
	Presence PresenceConfig `yaml:"presence"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig represents database configuration.
// Driver selects the backend: "sqlite" for local development and tests,
// "postgres" for deployments.
type DatabaseConfig struct {
	Driver         string `yaml:"driver"`
	Path           string `yaml:"path"` // sqlite only
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"ssl_mode"`
	MaxConnections int    `yaml:"max_connections"`
	MinConnections int    `yaml:"min_connections"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AuthConfig represents authentication configuration
type AuthConfig struct {
	SecretKey   string        `yaml:"secret_key"`
	TokenExpiry time.Duration `yaml:"token_expiry"`
	Issuer      string        `yaml:"issuer"`
}

// PresenceConfig tunes the presence engine
type PresenceConfig struct {
	DefaultBreakSeconds int           `yaml:"default_break_seconds"`
	CodeLength          int           `yaml:"code_length"`
	StaleAfter          time.Duration `yaml:"stale_after"`
	StaleSweepInterval  time.Duration `yaml:"stale_sweep_interval"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a configuration with default values
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:         "sqlite",
			Path:           "presence.db",
			Host:           "localhost",
			Port:           5432,
			User:           "presence",
			Password:       "presence_dev",
			Database:       "presence_dev",
			SSLMode:        "disable",
			MaxConnections: 20,
			MinConnections: 2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Auth: AuthConfig{
			SecretKey:   "change-me-in-production",
			TokenExpiry: 24 * time.Hour,
			Issuer:      "presence-engine",
		},
		Presence: PresenceConfig{
			DefaultBreakSeconds: 300,
			CodeLength:          4,
			StaleAfter:          30 * time.Minute,
			StaleSweepInterval:  5 * time.Minute,
		},
	}
}

// getConfigPath returns the configuration file path
func getConfigPath() string {
	if path := os.Getenv("PRESENCE_CONFIG"); path != "" {
		return path
	}
	return "config.yaml"
}

// applyEnv overrides configuration with environment variables
func (c *Config) applyEnv() {
	if host := os.Getenv("PRESENCE_SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("PRESENCE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if readTimeout := os.Getenv("PRESENCE_SERVER_READ_TIMEOUT"); readTimeout != "" {
		if d, err := time.ParseDuration(readTimeout); err == nil {
			c.Server.ReadTimeout = d
		}
	}
	if writeTimeout := os.Getenv("PRESENCE_SERVER_WRITE_TIMEOUT"); writeTimeout != "" {
		if d, err := time.ParseDuration(writeTimeout); err == nil {
			c.Server.WriteTimeout = d
		}
	}

	if driver := os.Getenv("PRESENCE_DATABASE_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if path := os.Getenv("PRESENCE_DATABASE_PATH"); path != "" {
		c.Database.Path = path
	}
	if host := os.Getenv("PRESENCE_DATABASE_HOST"); host != "" {
		c.Database.Host = host
	}
	if port := os.Getenv("PRESENCE_DATABASE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Database.Port = p
		}
	}
	if user := os.Getenv("PRESENCE_DATABASE_USER"); user != "" {
		c.Database.User = user
	}
	if password := os.Getenv("PRESENCE_DATABASE_PASSWORD"); password != "" {
		c.Database.Password = password
	}
	if database := os.Getenv("PRESENCE_DATABASE_DATABASE"); database != "" {
		c.Database.Database = database
	}
	if sslMode := os.Getenv("PRESENCE_DATABASE_SSL_MODE"); sslMode != "" {
		c.Database.SSLMode = sslMode
	}
	if maxConns := os.Getenv("PRESENCE_DATABASE_MAX_CONNECTIONS"); maxConns != "" {
		if m, err := strconv.Atoi(maxConns); err == nil {
			c.Database.MaxConnections = m
		}
	}

	if level := os.Getenv("PRESENCE_LOGGING_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("PRESENCE_LOGGING_FORMAT"); format != "" {
		c.Logging.Format = format
	}

	if secretKey := os.Getenv("PRESENCE_AUTH_SECRET_KEY"); secretKey != "" {
		c.Auth.SecretKey = secretKey
	}
	if tokenExpiry := os.Getenv("PRESENCE_AUTH_TOKEN_EXPIRY"); tokenExpiry != "" {
		if d, err := time.ParseDuration(tokenExpiry); err == nil {
			c.Auth.TokenExpiry = d
		}
	}
	if issuer := os.Getenv("PRESENCE_AUTH_ISSUER"); issuer != "" {
		c.Auth.Issuer = issuer
	}

	if breakSecs := os.Getenv("PRESENCE_DEFAULT_BREAK_SECONDS"); breakSecs != "" {
		if s, err := strconv.Atoi(breakSecs); err == nil {
			c.Presence.DefaultBreakSeconds = s
		}
	}
	if staleAfter := os.Getenv("PRESENCE_STALE_AFTER"); staleAfter != "" {
		if d, err := time.ParseDuration(staleAfter); err == nil {
			c.Presence.StaleAfter = d
		}
	}
	if sweep := os.Getenv("PRESENCE_STALE_SWEEP_INTERVAL"); sweep != "" {
		if d, err := time.ParseDuration(sweep); err == nil {
			c.Presence.StaleSweepInterval = d
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("max connections must be at least 1")
	}

	if c.Database.MinConnections < 0 {
		return fmt.Errorf("min connections cannot be negative")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("min connections cannot be greater than max connections")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}

	if c.Presence.DefaultBreakSeconds <= 0 {
		return fmt.Errorf("default break seconds must be positive")
	}

	if c.Presence.CodeLength < 4 || c.Presence.CodeLength > 8 {
		return fmt.Errorf("code length must be between 4 and 8")
	}

	if c.Presence.StaleAfter <= 0 {
		return fmt.Errorf("stale after must be positive")
	}

	return nil
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server: %s:%d, Database: %s, Logging: %s/%s}",
		c.Server.Host, c.Server.Port,
		c.Database.Driver,
		c.Logging.Level, c.Logging.Format,
	)
}

// PostgresDSN returns the PostgreSQL connection string
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=10",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

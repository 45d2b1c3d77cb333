package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
)

// Config holds all process configuration
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"3000"`

	// Database: PostgreSQL by default, in-memory fallback for development
	PostgresDSN string `env:"POSTGRES_DSN"`
	UseMemoryDB bool   `env:"USE_MEMORY_DB" envDefault:"false"`

	// Session signing secret; required at startup, not per-request
	JWTSecret string `env:"JWT_SECRET"`

	// Access guard policy: redirect already-authenticated users away from
	// login/signup pages
	RedirectAuthenticated bool `env:"REDIRECT_AUTHENTICATED" envDefault:"true"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	Debug bool `env:"DEBUG" envDefault:"false"`
}

// LoadConfig loads configuration from .env files and the environment.
func LoadConfig() (*Config, error) {
	// Load the environment file matching the deployment stage first; values
	// already present in the environment win.
	switch os.Getenv("ENVIRONMENT") {
	case "production":
		loadEnvFile(".env.production")
	default:
		loadEnvFile(".env.local")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.PostgresDSN = strings.TrimSpace(cfg.PostgresDSN)
	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)

	if cfg.IsProduction() {
		cfg.Debug = false
	}
	return cfg, nil
}

// Cached config (initialized once per process)
var (
	cachedConfig *Config
	cachedErr    error
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config, loading it on first use.
func GetCached() (*Config, error) {
	configOnce.Do(func() {
		cachedConfig, cachedErr = LoadConfig()
	})
	return cachedConfig, cachedErr
}

// Validate enforces the startup preconditions: a signing secret and a
// database configuration must be present.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}

	if c.PostgresDSN == "" && !c.UseMemoryDB {
		return fmt.Errorf("database configuration incomplete: set POSTGRES_DSN or USE_MEMORY_DB=true")
	}
	if c.UseMemoryDB && c.IsProduction() {
		return fmt.Errorf("in-memory database is not allowed in production")
	}

	return nil
}

// IsProduction reports whether the process runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment reports whether the process runs in development.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// loadEnvFile loads KEY=VALUE pairs from filename into the environment.
// Missing files are ignored.
func loadEnvFile(filename string) {
	file, err := os.Open(filename)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if len(value) >= 2 {
			if (strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"")) ||
				(strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'")) {
				value = value[1 : len(value)-1]
			}
		}

		// Environment takes precedence over file values
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

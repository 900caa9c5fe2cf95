// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	CatalogDir  string
	Gemini      GeminiConfig

	// TurnLimit and ReflectionMinLength are behavioral-contract constants.
	// They are configurable but never change the state machine's structure.
	TurnLimit           int
	ReflectionMinLength int
}

// GeminiConfig controls the Gemini API client used for persona replies and
// feedback synthesis.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/rolelab.db"),
		CatalogDir:  getEnv("CATALOG_DIR", "./catalog"),
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		TurnLimit:           getEnvInt("TURN_LIMIT", 10),
		ReflectionMinLength: getEnvInt("REFLECTION_MIN_LENGTH", 50),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.CatalogDir == "" {
		return fmt.Errorf("CATALOG_DIR cannot be empty")
	}
	if c.Gemini.Model == "" {
		return fmt.Errorf("GEMINI_MODEL cannot be empty")
	}
	if c.TurnLimit <= 0 {
		return fmt.Errorf("TURN_LIMIT must be > 0")
	}
	if c.ReflectionMinLength <= 0 {
		return fmt.Errorf("REFLECTION_MIN_LENGTH must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AIEnabled reports whether a Gemini API key is configured.
func (c *Config) AIEnabled() bool {
	return c.Gemini.APIKey != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir               string // Base directory for all databases (defaults to "./data", always absolute)
	InboxDir              string // Directory scanned for weekly instrument input files
	ParamsFile            string // Optional YAML file with governance parameters
	WeeklySchedule        string // Cron expression (with seconds) for the weekly cycle
	ScenarioReadTimeout   time.Duration
	ArchiveRetentionWeeks int // 0 keeps every archived document
	LogLevel              string
	Port                  int
	DevMode               bool
	R2                    *R2Config
	Params                *Params
}

// R2Config holds the Cloudflare R2 archive settings. Archiving is disabled when
// any credential is missing.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// Enabled reports whether all R2 credentials are present
func (c *R2Config) Enabled() bool {
	return c != nil && c.AccountID != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("GOVERNOR_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:               absDataDir,
		InboxDir:              getEnv("GOVERNOR_INBOX", filepath.Join(absDataDir, "inbox")),
		ParamsFile:            getEnv("GOVERNOR_PARAMS_FILE", ""),
		WeeklySchedule:        getEnv("WEEKLY_CYCLE_SCHEDULE", "0 0 6 * * MON"), // Monday 06:00
		ScenarioReadTimeout:   time.Duration(getEnvAsInt("SCENARIO_READ_TIMEOUT_MS", 2000)) * time.Millisecond,
		ArchiveRetentionWeeks: getEnvAsInt("R2_RETENTION_WEEKS", 104),
		Port:                  getEnvAsInt("GO_PORT", 8001),
		DevMode:               getEnvAsBool("DEV_MODE", false),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		R2: &R2Config{
			AccountID:       getEnv("R2_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("R2_BUCKET", ""),
		},
	}

	params, err := LoadParams(cfg.ParamsFile)
	if err != nil {
		return nil, err
	}
	cfg.Params = params

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid GO_PORT: %d", c.Port)
	}
	if c.ScenarioReadTimeout <= 0 {
		return fmt.Errorf("SCENARIO_READ_TIMEOUT_MS must be positive")
	}
	if c.ArchiveRetentionWeeks < 0 {
		return fmt.Errorf("R2_RETENTION_WEEKS must not be negative")
	}
	if c.WeeklySchedule == "" {
		return fmt.Errorf("WEEKLY_CYCLE_SCHEDULE must not be empty")
	}
	if c.Params == nil {
		return fmt.Errorf("governance parameters not loaded")
	}
	return c.Params.Validate()
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

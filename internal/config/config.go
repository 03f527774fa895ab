package config

import (
	"os"
	"strconv"

	"gowbic/domain/wbic"
	"gowbic/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Sampling SamplingConfig
	Data     DataConfig
}

// DatabaseConfig holds result ledger connection settings. An empty URL
// selects the in-memory ledger.
type DatabaseConfig struct {
	URL     string
	SSLMode string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// SamplingConfig holds the sweep defaults loaded from the environment
type SamplingConfig struct {
	Seed                 uint64
	Chains               int
	WarmupDraws          int
	RetainedDraws        int
	TargetAcceptance     float64
	MinRetainedDraws     int
	DiagnosticDimCeiling int
	Parallelism          int
}

// DataConfig holds dataset source settings
type DataConfig struct {
	DatasetFile    string
	ResponseColumn string
	TimeColumn     string
	SheetName      string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL:     getEnvOrDefault("DATABASE_URL", ""),
			SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
		},
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8080"),
		},
		Sampling: SamplingFromEnv(),
		Data:     DataFromEnv(),
	}

	if err := config.Sampling.RunConfig().Validate(); err != nil {
		return nil, errors.Wrap(err, "sampling configuration validation failed")
	}

	return config, nil
}

// SamplingFromEnv reads sweep settings from the environment, falling back to
// the code defaults for anything unset or unparseable. Parse failures never
// abort: the assembled RunConfig is validated where the sweep starts.
func SamplingFromEnv() SamplingConfig {
	defaults := wbic.DefaultRunConfig()
	return SamplingConfig{
		Seed:                 getEnvUint64OrDefault("WBIC_SEED", defaults.Seed),
		Chains:               getEnvIntOrDefault("WBIC_CHAINS", defaults.Chains),
		WarmupDraws:          getEnvIntOrDefault("WBIC_WARMUP_DRAWS", defaults.WarmupDraws),
		RetainedDraws:        getEnvIntOrDefault("WBIC_RETAINED_DRAWS", defaults.RetainedDraws),
		TargetAcceptance:     getEnvFloatOrDefault("WBIC_TARGET_ACCEPTANCE", defaults.TargetAcceptance),
		MinRetainedDraws:     getEnvIntOrDefault("WBIC_MIN_RETAINED", defaults.MinRetainedDraws),
		DiagnosticDimCeiling: getEnvIntOrDefault("WBIC_DIAGNOSTIC_DIM_CEILING", defaults.DiagnosticDimCeiling),
		Parallelism:          getEnvIntOrDefault("WBIC_PARALLELISM", defaults.Parallelism),
	}
}

// DataFromEnv reads dataset source settings from the environment
func DataFromEnv() DataConfig {
	return DataConfig{
		DatasetFile:    getEnvOrDefault("DATASET_FILE", ""),
		ResponseColumn: getEnvOrDefault("RESPONSE_COLUMN", ""),
		TimeColumn:     getEnvOrDefault("TIME_COLUMN", ""),
		SheetName:      getEnvOrDefault("SHEET_NAME", ""),
	}
}

// RunConfig maps the environment-backed settings onto the sweep defaults
func (c SamplingConfig) RunConfig() wbic.RunConfig {
	cfg := wbic.DefaultRunConfig()
	cfg.Seed = c.Seed
	cfg.Chains = c.Chains
	cfg.WarmupDraws = c.WarmupDraws
	cfg.RetainedDraws = c.RetainedDraws
	cfg.TargetAcceptance = c.TargetAcceptance
	cfg.MinRetainedDraws = c.MinRetainedDraws
	cfg.DiagnosticDimCeiling = c.DiagnosticDimCeiling
	cfg.Parallelism = c.Parallelism
	return cfg
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvUint64OrDefault(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if uintValue, err := strconv.ParseUint(value, 10, 64); err == nil {
			return uintValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

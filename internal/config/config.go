package config

import (
	"os"
	"strconv"
	"strings"

	"gocausal/internal/errors"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config represents the complete process configuration.
// Analysis thresholds live in the plan file, not here.
type Config struct {
	Database DatabaseConfig
	Engine   EngineConfig
	Metrics  MetricsConfig
	LogLevel string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL    string
	Driver string
}

// EngineConfig holds execution settings for the analysis service.
type EngineConfig struct {
	// Parallelism is the number of definitions analysed concurrently; 1 runs sequentially.
	Parallelism int
	PlanFile    string
	DataFile    string
}

// MetricsConfig holds the Prometheus textfile destination. Empty disables export.
type MetricsConfig struct {
	File string
}

// Load reads configuration from environment variables and validates it.
// A missing DATABASE_URL is accepted here: the CLI may read from a workbook instead.
func Load() (*Config, error) {
	config := &Config{
		Database: loadDatabaseConfig(),
		Engine:   loadEngineConfig(),
		Metrics: MetricsConfig{
			File: getEnvOrDefault("GOCAUSAL_METRICS_FILE", ""),
		},
		LogLevel: strings.ToUpper(getEnvOrDefault("LOG_LEVEL", "INFO")),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadDatabaseConfig() DatabaseConfig {
	url := os.Getenv("DATABASE_URL")
	driver := getEnvOrDefault("DB_DRIVER", "")
	if driver == "" {
		driver = InferDriver(url)
	}
	return DatabaseConfig{URL: url, Driver: driver}
}

func loadEngineConfig() EngineConfig {
	return EngineConfig{
		Parallelism: getEnvIntOrDefault("GOCAUSAL_PARALLELISM", 1),
		PlanFile:    getEnvOrDefault("GOCAUSAL_PLAN", ""),
		DataFile:    getEnvOrDefault("GOCAUSAL_DATA_FILE", ""),
	}
}

// InferDriver picks postgres for URL-style DSNs and sqlite3 for file paths.
func InferDriver(url string) string {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

func validateConfig(config *Config) error {
	switch config.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return errors.ConfigInvalid("DB_DRIVER must be postgres or sqlite3, got " + config.Database.Driver)
	}
	if config.Engine.Parallelism < 1 {
		return errors.ConfigInvalid("GOCAUSAL_PARALLELISM must be at least 1")
	}
	switch config.LogLevel {
	case "ERROR", "WARN", "INFO", "DEBUG", "TRACE":
	default:
		return errors.ConfigInvalid("LOG_LEVEL must be one of ERROR, WARN, INFO, DEBUG, TRACE")
	}
	return nil
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

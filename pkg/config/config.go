package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Environment    string
	LogLevel       string
	LogFormat      string
	Port           string
	MaxUploadMB    int
	FuzzyThreshold int

	// Rule-based churn scoring thresholds
	InactiveDays int
	MinOrders    int
	MinSessions  int

	// Probability classifier label thresholds
	ProbHigh   float64
	ProbMedium float64

	// Optional YAML file overriding the canonical field alias lists
	AliasFile string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		Port:           getEnv("PORT", "8080"),
		MaxUploadMB:    getEnvAsInt("MAX_UPLOAD_MB", 32),
		FuzzyThreshold: getEnvAsInt("FUZZY_THRESHOLD", 80),
		InactiveDays:   getEnvAsInt("CHURN_INACTIVE_DAYS", 14),
		MinOrders:      getEnvAsInt("CHURN_MIN_ORDERS", 1),
		MinSessions:    getEnvAsInt("CHURN_MIN_SESSIONS", 3),
		ProbHigh:       getEnvAsFloat("CHURN_PROB_HIGH", 0.75),
		ProbMedium:     getEnvAsFloat("CHURN_PROB_MEDIUM", 0.4),
		AliasFile:      getEnv("ALIAS_FILE", ""),
	}

	if config.FuzzyThreshold < 0 || config.FuzzyThreshold > 100 {
		return nil, fmt.Errorf("FUZZY_THRESHOLD must be between 0 and 100, got %d", config.FuzzyThreshold)
	}
	if config.ProbMedium >= config.ProbHigh {
		return nil, fmt.Errorf("CHURN_PROB_MEDIUM (%v) must be below CHURN_PROB_HIGH (%v)", config.ProbMedium, config.ProbHigh)
	}

	return config, nil
}

// AliasOverrides is the on-disk shape of a custom alias file:
// canonical field name -> ordered alias list.
type AliasOverrides map[string][]string

// LoadAliasFile reads a YAML alias-override file
func LoadAliasFile(path string) (AliasOverrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias file: %w", err)
	}

	var overrides AliasOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse alias file %s: %w", path, err)
	}

	for field, aliases := range overrides {
		if len(aliases) == 0 {
			return nil, fmt.Errorf("alias file %s: field %q has an empty alias list", path, field)
		}
	}

	return overrides, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

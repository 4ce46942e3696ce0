// Package config loads server settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Addr    string
	DBPath  string
	LogPath string

	// Assistant configuration
	GeminiAPIKey       string
	GeminiModel        string
	AssistantTimeout   time.Duration
	QueryDailyLimit    int
	AnalysisDailyLimit int
	SuggestionCacheTTL time.Duration
}

// Load reads envFile, if given, then the environment. Without envFile a
// .env in the working directory is used when present. Variables already set
// in the environment take precedence over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var errs []error
	cfg := &Config{
		Addr:               getEnv("SHRAMBA_ADDR", ":8080"),
		DBPath:             getEnv("SHRAMBA_DB", "shramba.sqlite3"),
		LogPath:            getEnv("SHRAMBA_LOG", ""),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-2.0-flash-001"),
		AssistantTimeout:   getEnvAsDuration("ASSISTANT_TIMEOUT", 8*time.Second, &errs),
		QueryDailyLimit:    getEnvAsInt("QUERY_DAILY_LIMIT", 10, &errs),
		AnalysisDailyLimit: getEnvAsInt("ANALYSIS_DAILY_LIMIT", 5, &errs),
		SuggestionCacheTTL: getEnvAsDuration("SUGGESTION_CACHE_TTL", 15*time.Minute, &errs),
	}

	if cfg.AssistantTimeout <= 0 {
		errs = append(errs, errors.New("ASSISTANT_TIMEOUT must be positive"))
	}
	if cfg.QueryDailyLimit < 1 || cfg.AnalysisDailyLimit < 1 {
		errs = append(errs, errors.New("daily limits must be at least 1"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int, errs *[]error) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return value
}

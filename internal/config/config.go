// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port     int
	LogLevel string
	DevMode  bool

	// EDGAR upstream
	EdgarUserAgent  string // Required by the SEC: descriptive client identifier with contact info
	FactsBaseURL    string // XBRL companyfacts API host
	ArchivesBaseURL string // Raw filing document host
	RequestsPerSec  float64
	MaxRetries      int
	BackoffBase     time.Duration
	AttemptTimeout  time.Duration
	OverallTimeout  time.Duration

	// Circuit breaker
	FailureThreshold    int
	SuccessThreshold    int
	RecoveryTimeout     time.Duration
	HalfOpenMaxRequests int

	// Cache
	CacheL1Capacity int
	CacheTTL        time.Duration
	CacheOpTimeout  time.Duration
	RedisAddr       string // Empty disables the L2 tier
	RedisPassword   string
	RedisDB         int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnvAsInt("PORT", 8090),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		EdgarUserAgent:  getEnv("EDGAR_USER_AGENT", ""),
		FactsBaseURL:    getEnv("EDGAR_FACTS_BASE_URL", "https://data.sec.gov"),
		ArchivesBaseURL: getEnv("EDGAR_ARCHIVES_BASE_URL", "https://www.sec.gov"),
		// The SEC enforces 10 req/s; the default leaves headroom rather
		// than running at the advertised ceiling.
		RequestsPerSec: getEnvAsFloat("EDGAR_REQUESTS_PER_SEC", 8.0),
		MaxRetries:     getEnvAsInt("EDGAR_MAX_RETRIES", 3),
		BackoffBase:    getEnvAsDuration("EDGAR_BACKOFF_BASE", 500*time.Millisecond),
		AttemptTimeout: getEnvAsDuration("EDGAR_ATTEMPT_TIMEOUT", 10*time.Second),
		OverallTimeout: getEnvAsDuration("EDGAR_OVERALL_TIMEOUT", 45*time.Second),

		FailureThreshold:    getEnvAsInt("BREAKER_FAILURE_THRESHOLD", 5),
		SuccessThreshold:    getEnvAsInt("BREAKER_SUCCESS_THRESHOLD", 2),
		RecoveryTimeout:     getEnvAsDuration("BREAKER_RECOVERY_TIMEOUT", 30*time.Second),
		HalfOpenMaxRequests: getEnvAsInt("BREAKER_HALF_OPEN_MAX_REQUESTS", 2),

		CacheL1Capacity: getEnvAsInt("CACHE_L1_CAPACITY", 256),
		CacheTTL:        getEnvAsDuration("CACHE_TTL", 24*time.Hour),
		CacheOpTimeout:  getEnvAsDuration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvAsInt("REDIS_DB", 0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	// EDGAR rejects requests without a descriptive User-Agent, so there is
	// no sensible default to fall back to.
	if c.EdgarUserAgent == "" {
		return fmt.Errorf("EDGAR_USER_AGENT is required (e.g. \"FinBrief research@finbrief.io\")")
	}

	if c.RequestsPerSec <= 0 {
		return fmt.Errorf("EDGAR_REQUESTS_PER_SEC must be positive, got %f", c.RequestsPerSec)
	}

	if c.CacheL1Capacity <= 0 {
		return fmt.Errorf("CACHE_L1_CAPACITY must be positive, got %d", c.CacheL1Capacity)
	}

	return nil
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultMaxKeep is the retention window applied when a caller does not pass maxKeep.
const DefaultMaxKeep = 10

// Config holds all application configuration.
type Config struct {
	// Storage provider configuration
	StorageProvider string // "s3", "gcs" or "memory"

	// S3 configuration
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3Bucket           string
	S3Region           string
	S3Endpoint         string // Optional custom endpoint

	// GCS configuration
	GCSBucket                string
	GoogleProjectID          string
	GoogleServiceAccountJSON string

	// Object layout
	StoragePrefix string

	// Retention and catalog
	DefaultMaxKeep  int
	PresignExpiry   time.Duration
	StatConcurrency int
	RetryAttempts   int
	PruneSchedule   string

	// HTTP
	Port               int
	CORSAllowedOrigins []string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		StorageProvider: os.Getenv("STORAGE_PROVIDER"),

		// S3
		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		S3Bucket:           os.Getenv("S3_BUCKET"),
		S3Region:           os.Getenv("S3_REGION"),
		S3Endpoint:         os.Getenv("S3_ENDPOINT"),

		// GCS
		GCSBucket:                os.Getenv("GCS_BUCKET"),
		GoogleProjectID:          os.Getenv("GOOGLE_PROJECT_ID"),
		GoogleServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),

		StoragePrefix: os.Getenv("BACKUP_STORAGE_PREFIX"),
		PruneSchedule: os.Getenv("PRUNE_SCHEDULE"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
	}

	cfg.DefaultMaxKeep = getEnvInt("DEFAULT_MAX_KEEP", DefaultMaxKeep)
	cfg.PresignExpiry = getEnvDuration("PRESIGN_EXPIRY", 15*time.Minute)
	cfg.StatConcurrency = getEnvInt("STAT_CONCURRENCY", 8)
	cfg.RetryAttempts = getEnvInt("STORAGE_RETRY_ATTEMPTS", 3)
	cfg.Port = getEnvInt("PORT", 8080)
	cfg.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.StorageProvider == "" {
		return fmt.Errorf("STORAGE_PROVIDER is required")
	}

	switch c.StorageProvider {
	case "s3":
		if err := c.validateS3(); err != nil {
			return err
		}
	case "gcs":
		if err := c.validateGCS(); err != nil {
			return err
		}
	case "memory":
	default:
		return fmt.Errorf("invalid STORAGE_PROVIDER: %s (must be 's3', 'gcs' or 'memory')", c.StorageProvider)
	}

	if c.DefaultMaxKeep < 0 {
		return fmt.Errorf("DEFAULT_MAX_KEEP must be non-negative")
	}
	if c.PresignExpiry <= 0 {
		return fmt.Errorf("PRESIGN_EXPIRY must be positive")
	}
	// S3 SigV4 caps presigned URLs at seven days.
	if c.PresignExpiry > 7*24*time.Hour {
		return fmt.Errorf("PRESIGN_EXPIRY must not exceed 168h")
	}
	if c.StatConcurrency < 1 {
		return fmt.Errorf("STAT_CONCURRENCY must be at least 1")
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("STORAGE_RETRY_ATTEMPTS must be at least 1")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}

	if c.PruneSchedule != "" {
		if _, err := cron.ParseStandard(c.PruneSchedule); err != nil {
			return fmt.Errorf("invalid PRUNE_SCHEDULE: %w", err)
		}
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid LOG_FORMAT: %s (must be 'text' or 'json')", c.LogFormat)
	}

	return nil
}

func (c *Config) validateS3() error {
	if c.AWSAccessKeyID == "" {
		return fmt.Errorf("AWS_ACCESS_KEY_ID is required for S3 storage")
	}
	if c.AWSSecretAccessKey == "" {
		return fmt.Errorf("AWS_SECRET_ACCESS_KEY is required for S3 storage")
	}
	if c.S3Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required for S3 storage")
	}
	if c.S3Region == "" && c.S3Endpoint == "" {
		return fmt.Errorf("S3_REGION is required for S3 storage (unless S3_ENDPOINT is set)")
	}
	return nil
}

func (c *Config) validateGCS() error {
	if c.GCSBucket == "" {
		return fmt.Errorf("GCS_BUCKET is required for GCS storage")
	}
	if c.GoogleProjectID == "" {
		return fmt.Errorf("GOOGLE_PROJECT_ID is required for GCS storage")
	}
	if c.GoogleServiceAccountJSON == "" {
		return fmt.Errorf("GOOGLE_SERVICE_ACCOUNT_JSON is required for GCS storage")
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer from environment variable with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("90s", "15m").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imedwei/workspace-backups/internal/config"
)

// RetryConfig holds retry configuration for storage operations.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryableStorage wraps an ObjectStore with retry logic.
//
// ErrNotFound and context cancellation are final and never retried.
type RetryableStorage struct {
	store  ObjectStore
	config RetryConfig
}

// NewRetryableStorage creates a new storage wrapper with retry logic.
func NewRetryableStorage(store ObjectStore, config RetryConfig) *RetryableStorage {
	return &RetryableStorage{
		store:  store,
		config: config,
	}
}

// List implements ObjectStore.List with retry logic.
func (r *RetryableStorage) List(ctx context.Context, prefix string) ([]string, error) {
	var result []string
	err := r.retry(ctx, func() error {
		var err error
		result, err = r.store.List(ctx, prefix)
		return err
	})
	return result, err
}

// Stat implements ObjectStore.Stat with retry logic.
func (r *RetryableStorage) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	var result ObjectInfo
	err := r.retry(ctx, func() error {
		var err error
		result, err = r.store.Stat(ctx, key)
		return err
	})
	return result, err
}

// PresignUpload implements ObjectStore.PresignUpload with retry logic.
func (r *RetryableStorage) PresignUpload(ctx context.Context, key string, metadata map[string]string, contentType string) (string, error) {
	var result string
	err := r.retry(ctx, func() error {
		var err error
		result, err = r.store.PresignUpload(ctx, key, metadata, contentType)
		return err
	})
	return result, err
}

// PresignDownload implements ObjectStore.PresignDownload with retry logic.
func (r *RetryableStorage) PresignDownload(ctx context.Context, key string) (string, error) {
	var result string
	err := r.retry(ctx, func() error {
		var err error
		result, err = r.store.PresignDownload(ctx, key)
		return err
	})
	return result, err
}

// Remove implements ObjectStore.Remove with retry logic.
func (r *RetryableStorage) Remove(ctx context.Context, key string) error {
	return r.retry(ctx, func() error {
		return r.store.Remove(ctx, key)
	})
}

// Close implements io.Closer.
func (r *RetryableStorage) Close() error {
	return Close(r.store)
}

// retry executes a function with exponential backoff retry logic.
func (r *RetryableStorage) retry(ctx context.Context, fn func() error) error {
	delay := r.config.InitialDelay

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		if !retryable(err) {
			return err
		}

		// Check if this is the last attempt
		if attempt == r.config.MaxAttempts {
			return fmt.Errorf("operation failed after %d attempts: %w", r.config.MaxAttempts, err)
		}

		// Wait before retrying
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		// Calculate next delay with exponential backoff
		delay = time.Duration(float64(delay) * r.config.Multiplier)
		if delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
		}
	}

	return nil
}

func retryable(err error) bool {
	return !errors.Is(err, ErrNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// NewStorage creates a storage provider based on configuration, wrapped
// with retries and metrics.
func NewStorage(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	var store ObjectStore
	var err error

	switch cfg.StorageProvider {
	case "s3":
		s3Config := S3Config{
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			Prefix:          cfg.StoragePrefix,
			UsePathStyle:    cfg.S3Endpoint != "", // Use path style for custom endpoints
			PresignExpiry:   cfg.PresignExpiry,
		}
		store, err = NewS3Storage(ctx, s3Config)

	case "gcs":
		if err := ValidateServiceAccountJSON(cfg.GoogleServiceAccountJSON); err != nil {
			return nil, fmt.Errorf("invalid GCS service account: %w", err)
		}

		gcsConfig := GCSConfig{
			Bucket:             cfg.GCSBucket,
			ProjectID:          cfg.GoogleProjectID,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			Prefix:             cfg.StoragePrefix,
			PresignExpiry:      cfg.PresignExpiry,
		}
		store, err = NewGCSStorage(ctx, gcsConfig)

	case "memory":
		store = NewMemoryStorage()

	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.StorageProvider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create %s storage: %w", cfg.StorageProvider, err)
	}

	retryConfig := DefaultRetryConfig()
	retryConfig.MaxAttempts = cfg.RetryAttempts

	return NewInstrumentedStorage(NewRetryableStorage(store, retryConfig), cfg.StorageProvider), nil
}

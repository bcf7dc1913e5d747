package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStorage implements ObjectStore for Google Cloud Storage.
type GCSStorage struct {
	client     *storage.Client
	bucket     string
	prefix     string
	expiry     time.Duration
	accessID   string
	privateKey []byte
	now        func() time.Time
}

// GCSConfig holds GCS-specific configuration.
type GCSConfig struct {
	Bucket             string
	ProjectID          string
	ServiceAccountJSON string
	Prefix             string        // Optional prefix for all keys
	PresignExpiry      time.Duration // Lifetime of signed URLs
}

// NewGCSStorage creates a new GCS storage provider.
//
// Signed URLs are produced with the service account's private key, so
// ServiceAccountJSON must carry one.
func NewGCSStorage(ctx context.Context, cfg GCSConfig) (*GCSStorage, error) {
	var opts []option.ClientOption
	if cfg.ServiceAccountJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	g := &GCSStorage{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		expiry: cfg.PresignExpiry,
		now:    time.Now,
	}
	if cfg.ServiceAccountJSON != "" {
		var sa serviceAccount
		if err := json.Unmarshal([]byte(cfg.ServiceAccountJSON), &sa); err == nil {
			g.accessID = sa.ClientEmail
			g.privateKey = []byte(sa.PrivateKey)
		}
	}
	return g, nil
}

// List implements ObjectStore.List.
func (g *GCSStorage) List(ctx context.Context, prefix string) ([]string, error) {
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{
		Prefix: objectName(g.prefix, prefix),
	})

	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return keys, fmt.Errorf("failed to list GCS objects: %w", err)
		}

		if key, ok := logicalKey(g.prefix, attrs.Name); ok {
			keys = append(keys, key)
		}
	}

	return keys, nil
}

// Stat implements ObjectStore.Stat.
func (g *GCSStorage) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	attrs, err := g.client.Bucket(g.bucket).Object(objectName(g.prefix, key)).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return ObjectInfo{}, ErrNotFound
		}
		return ObjectInfo{}, fmt.Errorf("failed to stat GCS object: %w", err)
	}

	return ObjectInfo{
		Key:          key,
		Size:         attrs.Size,
		LastModified: attrs.Updated,
		Metadata:     attrs.Metadata,
	}, nil
}

// PresignUpload implements ObjectStore.PresignUpload.
//
// Metadata is signed as x-goog-meta-* query parameters. The uploading client
// must send the given content type and nothing else.
func (g *GCSStorage) PresignUpload(_ context.Context, key string, metadata map[string]string, contentType string) (string, error) {
	signed, err := g.client.Bucket(g.bucket).SignedURL(objectName(g.prefix, key), g.signOptions(&storage.SignedURLOptions{
		Method:          "PUT",
		ContentType:     contentType,
		QueryParameters: metadataQuery(metadata),
	}))
	if err != nil {
		return "", fmt.Errorf("failed to sign GCS upload URL: %w", err)
	}
	return signed, nil
}

// PresignDownload implements ObjectStore.PresignDownload.
func (g *GCSStorage) PresignDownload(_ context.Context, key string) (string, error) {
	signed, err := g.client.Bucket(g.bucket).SignedURL(objectName(g.prefix, key), g.signOptions(&storage.SignedURLOptions{
		Method: "GET",
	}))
	if err != nil {
		return "", fmt.Errorf("failed to sign GCS download URL: %w", err)
	}
	return signed, nil
}

// Remove implements ObjectStore.Remove.
func (g *GCSStorage) Remove(ctx context.Context, key string) error {
	if err := g.client.Bucket(g.bucket).Object(objectName(g.prefix, key)).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete from GCS: %w", err)
	}

	return nil
}

// Close closes the GCS client connection.
func (g *GCSStorage) Close() error {
	return g.client.Close()
}

// signOptions fills in the V4 scheme, the expiry and, when the service
// account key is known, the signing identity.
func (g *GCSStorage) signOptions(opts *storage.SignedURLOptions) *storage.SignedURLOptions {
	opts.Scheme = storage.SigningSchemeV4
	opts.Expires = g.now().Add(g.expiry)
	if g.accessID != "" && len(g.privateKey) > 0 {
		opts.GoogleAccessID = g.accessID
		opts.PrivateKey = g.privateKey
	}
	return opts
}

// metadataQuery renders metadata as x-goog-meta-<k> query parameters.
func metadataQuery(metadata map[string]string) url.Values {
	if len(metadata) == 0 {
		return nil
	}

	q := make(url.Values, len(metadata))
	for k, v := range metadata {
		q.Set("x-goog-meta-"+k, v)
	}
	return q
}

type serviceAccount struct {
	Type        string `json:"type"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// ValidateServiceAccountJSON validates the service account JSON string.
func ValidateServiceAccountJSON(jsonStr string) error {
	var sa serviceAccount
	if err := json.Unmarshal([]byte(jsonStr), &sa); err != nil {
		return fmt.Errorf("invalid service account JSON: %w", err)
	}

	if sa.Type != "service_account" {
		return fmt.Errorf("invalid service account type: %s", sa.Type)
	}

	return nil
}

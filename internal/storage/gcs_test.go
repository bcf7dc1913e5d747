package storage

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

func TestMetadataQuery(t *testing.T) {
	got := metadataQuery(map[string]string{
		"label":     "ws",
		"fileCount": "3",
		"createdAt": "2025-01-21T10:30:45.123Z",
	})
	want := url.Values{
		"x-goog-meta-createdAt": {"2025-01-21T10:30:45.123Z"},
		"x-goog-meta-fileCount": {"3"},
		"x-goog-meta-label":     {"ws"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("metadataQuery() = %v, want %v", got, want)
	}

	if got := metadataQuery(nil); got != nil {
		t.Errorf("metadataQuery(nil) = %v, want nil", got)
	}
}

func newSigningGCSStorage(t *testing.T) *GCSStorage {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	pemKey := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("storage.NewClient() error = %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return &GCSStorage{
		client:     client,
		bucket:     "bucket",
		prefix:     "backups",
		expiry:     time.Hour,
		accessID:   "backups@project.iam.gserviceaccount.com",
		privateKey: pemKey,
		now:        time.Now,
	}
}

func TestGCSStorage_PresignUpload(t *testing.T) {
	g := newSigningGCSStorage(t)

	signed, err := g.PresignUpload(context.Background(), "/ws/2025-01-21T10-30-45-123Z.tar.gz", map[string]string{
		"label":     "ws",
		"createdAt": "2025-01-21T10:30:45.123Z",
	}, "application/gzip")
	if err != nil {
		t.Fatalf("PresignUpload() error = %v", err)
	}

	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	q := u.Query()

	// Only the content type may be required of the uploading client.
	if got := q.Get("X-Goog-SignedHeaders"); got != "content-type;host" {
		t.Errorf("X-Goog-SignedHeaders = %q, want %q", got, "content-type;host")
	}
	if got := q.Get("x-goog-meta-label"); got != "ws" {
		t.Errorf("x-goog-meta-label = %q, want %q", got, "ws")
	}
	if got := q.Get("x-goog-meta-createdAt"); got != "2025-01-21T10:30:45.123Z" {
		t.Errorf("x-goog-meta-createdAt = %q, want %q", got, "2025-01-21T10:30:45.123Z")
	}
	if got := q.Get("X-Goog-Expires"); got != "3600" {
		t.Errorf("X-Goog-Expires = %q, want %q", got, "3600")
	}
	if q.Get("X-Goog-Signature") == "" {
		t.Error("X-Goog-Signature is missing")
	}
	if !strings.HasSuffix(u.Path, "/backups/ws/2025-01-21T10-30-45-123Z.tar.gz") {
		t.Errorf("path = %q, want object under the storage prefix", u.Path)
	}
}

func TestGCSStorage_PresignDownload(t *testing.T) {
	g := newSigningGCSStorage(t)

	signed, err := g.PresignDownload(context.Background(), "/ws/a.tar.gz")
	if err != nil {
		t.Fatalf("PresignDownload() error = %v", err)
	}

	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	if got := u.Query().Get("X-Goog-SignedHeaders"); got != "host" {
		t.Errorf("X-Goog-SignedHeaders = %q, want %q", got, "host")
	}
	for k := range u.Query() {
		if strings.HasPrefix(k, "x-goog-meta-") {
			t.Errorf("download URL carries metadata parameter %q", k)
		}
	}
}

func TestValidateServiceAccountJSON(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr bool
	}{
		{
			name:    "valid service account",
			json:    `{"type": "service_account", "project_id": "test"}`,
			wantErr: false,
		},
		{
			name:    "invalid type",
			json:    `{"type": "user", "project_id": "test"}`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			json:    `{invalid json}`,
			wantErr: true,
		},
		{
			name:    "empty json",
			json:    `{}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateServiceAccountJSON(tt.json)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateServiceAccountJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

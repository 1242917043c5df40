package audio

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// ObjectStore provides the cloud storage operations the archive needs.
type ObjectStore interface {
	// Write stores data under bucket/object.
	Write(ctx context.Context, bucket, object, contentType string, data []byte) error

	// Read returns the bytes of bucket/object.
	Read(ctx context.Context, bucket, object string) ([]byte, error)
}

// GCSObjectStore is the ObjectStore backed by Google Cloud Storage.
type GCSObjectStore struct {
	client *storage.Client
}

// NewGCSObjectStore wraps an existing storage client. The caller owns the
// client and closes it.
func NewGCSObjectStore(client *storage.Client) *GCSObjectStore {
	return &GCSObjectStore{client: client}
}

// Write uploads data in one request.
func (s *GCSObjectStore) Write(ctx context.Context, bucket, object, contentType string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("Write: copy to GCS writer: %w", err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("Write: finalize upload: %w", err)
	}

	return nil
}

// Read downloads the whole object.
func (s *GCSObjectStore) Read(ctx context.Context, bucket, object string) ([]byte, error) {
	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Read: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Read: reading bytes: %w", err)
	}

	return data, nil
}

var _ ObjectStore = (*GCSObjectStore)(nil)

// ParseURI splits "gs://bucket/path/to/object" into bucket and object.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	bucket, object, ok := strings.Cut(strings.TrimPrefix(uri, "gs://"), "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}

	return bucket, object, nil
}

// Filename returns the last element of a GCS URI.
// e.g., "gs://bucket/voice/1/2024-01-16/5.ogg" → "5.ogg"
func Filename(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")

	_, object, ok := strings.Cut(trimmed, "/")
	if !ok {
		return trimmed
	}

	return path.Base(object)
}

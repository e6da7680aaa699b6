package archive

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCSBackend stores retention copies in a Google Cloud Storage bucket.
type GCSBackend struct {
	client *storage.Client
	bucket string
	prefix string // Optional key prefix (e.g., "refdata/")
}

// GCSConfig holds configuration for GCSBackend.
type GCSConfig struct {
	Bucket string
	Prefix string // Optional key prefix
}

// NewGCSBackend creates a GCS-backed retention store (uses ADC by default).
func NewGCSBackend(ctx context.Context, cfg GCSConfig) (*GCSBackend, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSBackend{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Put uploads one artifact. An object that already exists is left untouched.
func (b *GCSBackend) Put(ctx context.Context, key string, data []byte) error {
	obj := b.client.Bucket(b.bucket).Object(b.prefix + key)
	if _, err := obj.Attrs(ctx); err == nil {
		// Already archived
		return nil
	}

	w := obj.NewWriter(ctx)
	w.ContentType = "application/x-ndjson"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close failed: %w", err)
	}
	return nil
}

// Close closes the GCS client.
func (b *GCSBackend) Close() error {
	return b.client.Close()
}

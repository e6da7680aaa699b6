package archive

import (
	"context"
	"fmt"
	"os"
)

// NewBackendFromEnv creates a retention backend based on environment
// configuration.
//
// Environment variables:
//   - REFDATA_ARCHIVE_BACKEND: "fs" (default), "s3", or "gcs"
//   - REFDATA_ARCHIVE_DIR: base directory for fs backend (default: ./archive)
//   - REFDATA_ARCHIVE_S3_BUCKET: bucket name (required for s3)
//   - REFDATA_ARCHIVE_S3_REGION: AWS region for s3
//   - REFDATA_ARCHIVE_S3_ENDPOINT: custom endpoint for s3 (MinIO, LocalStack)
//   - REFDATA_ARCHIVE_GCS_BUCKET: bucket name (required for gcs)
//   - REFDATA_ARCHIVE_PREFIX: optional key prefix for s3/gcs
func NewBackendFromEnv(ctx context.Context) (Backend, error) {
	backend := os.Getenv("REFDATA_ARCHIVE_BACKEND")
	if backend == "" {
		backend = "fs"
	}

	switch backend {
	case "fs":
		dir := os.Getenv("REFDATA_ARCHIVE_DIR")
		if dir == "" {
			dir = "./archive"
		}
		return NewFSBackend(dir)

	case "s3":
		bucket := os.Getenv("REFDATA_ARCHIVE_S3_BUCKET")
		if bucket == "" {
			return nil, fmt.Errorf("REFDATA_ARCHIVE_S3_BUCKET is required for s3 backend")
		}
		return NewS3Backend(ctx, S3Config{
			Bucket:   bucket,
			Region:   os.Getenv("REFDATA_ARCHIVE_S3_REGION"),
			Endpoint: os.Getenv("REFDATA_ARCHIVE_S3_ENDPOINT"),
			Prefix:   os.Getenv("REFDATA_ARCHIVE_PREFIX"),
		})

	case "gcs":
		bucket := os.Getenv("REFDATA_ARCHIVE_GCS_BUCKET")
		if bucket == "" {
			return nil, fmt.Errorf("REFDATA_ARCHIVE_GCS_BUCKET is required for gcs backend")
		}
		return NewGCSBackend(ctx, GCSConfig{
			Bucket: bucket,
			Prefix: os.Getenv("REFDATA_ARCHIVE_PREFIX"),
		})

	default:
		return nil, fmt.Errorf("unknown archive backend: %s", backend)
	}
}

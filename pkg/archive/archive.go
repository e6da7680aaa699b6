// Package archive copies sealed audit artifacts (manifest, diagnostics,
// signature) to offsite retention storage. The pipeline itself stays
// local-filesystem-resident; archival is a best-effort post-seal step and
// never a prerequisite for the manifest's own atomicity.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"
)

// Backend stores one artifact under a key.
type Backend interface {
	Put(ctx context.Context, key string, data []byte) error
}

// Archiver uploads a sealed manifest and its companions through a Backend.
// Uploads are throttled so an archival sweep over a backlog cannot saturate
// the link.
type Archiver struct {
	backend Backend
	logger  *slog.Logger
	limiter *rate.Limiter
}

// NewArchiver creates an archiver over a backend. uploadsPerSec <= 0 means
// unthrottled.
func NewArchiver(backend Backend, uploadsPerSec float64) *Archiver {
	limit := rate.Inf
	if uploadsPerSec > 0 {
		limit = rate.Limit(uploadsPerSec)
	}
	return &Archiver{
		backend: backend,
		logger:  slog.Default().With("component", "archive"),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// ArchiveManifest uploads the manifest file plus any companion diagnostics
// and signature files, keyed under manifests/<filename>.
func (a *Archiver) ArchiveManifest(ctx context.Context, manifestPath string) error {
	paths := []string{manifestPath}
	base := strings.TrimSuffix(manifestPath, ".ndjson")
	for _, companion := range []string{base + ".diagnostics.jsonl", base + ".sig.json"} {
		if _, err := os.Stat(companion); err == nil {
			paths = append(paths, companion)
		}
	}

	for _, path := range paths {
		if err := a.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("archive throttle interrupted: %w", err)
		}

		data, err := os.ReadFile(path) //nolint:gosec // derived from the sealed manifest path
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
		}

		key := "manifests/" + filepath.Base(path)
		if err := a.backend.Put(ctx, key, data); err != nil {
			return fmt.Errorf("failed to archive %s: %w", filepath.Base(path), err)
		}
		a.logger.InfoContext(ctx, "artifact_archived", "key", key, "bytes", len(data))
	}
	return nil
}

// FSBackend is the filesystem retention backend (e.g. an NFS mount).
type FSBackend struct {
	baseDir string
}

// NewFSBackend creates a filesystem backend rooted at baseDir.
func NewFSBackend(baseDir string) (*FSBackend, error) {
	//nolint:gosec // G301: 0755 is intentional for a shared retention directory
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure archive dir: %w", err)
	}
	return &FSBackend{baseDir: baseDir}, nil
}

func (b *FSBackend) Put(ctx context.Context, key string, data []byte) error {
	path := filepath.Join(b.baseDir, filepath.FromSlash(key))
	//nolint:gosec // G301: parent of a shared retention file
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to ensure archive subdir: %w", err)
	}

	// Write to temp, then rename
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil { //nolint:gosec // G306: readable retention copy
		return fmt.Errorf("failed to write archive copy: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to commit archive copy: %w", err)
	}
	return nil
}

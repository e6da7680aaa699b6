package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// FileStore implements Store using a local JSON file (for simple durability
// on single-machine deployments).
type FileStore struct {
	path string
	mu   sync.RWMutex
	data map[string]Retrieval
}

// NewFileStore opens (or creates) a file-backed retrieval-state store.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{
		path: path,
		data: make(map[string]Retrieval),
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (f *FileStore) load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := os.Stat(f.path); os.IsNotExist(err) {
		return nil // Start empty
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("failed to read retrieval state: %w", err)
	}
	if err := json.Unmarshal(data, &f.data); err != nil {
		return fmt.Errorf("retrieval state is corrupt: %w", err)
	}
	return nil
}

func (f *FileStore) save() error {
	data, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0600)
}

func (f *FileStore) Upsert(ctx context.Context, r Retrieval) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, ok := f.data[r.SeriesID]
	if ok && existing.RetrievedAtUTC.After(r.RetrievedAtUTC) {
		return nil // Never move state backwards
	}

	f.data[r.SeriesID] = r
	return f.save()
}

func (f *FileStore) Get(ctx context.Context, seriesID string) (Retrieval, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	r, ok := f.data[seriesID]
	if !ok {
		return Retrieval{}, ErrNotFound
	}
	return r, nil
}

func (f *FileStore) LastRetrievals(ctx context.Context) (map[string]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[string]string, len(f.data))
	for id, r := range f.data {
		out[id] = r.RetrievedAtUTC.UTC().Format(time.RFC3339)
	}
	return out, nil
}

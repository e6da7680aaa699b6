package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var retrievedAt = time.Date(2023, 1, 1, 9, 0, 0, 0, time.UTC)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	fs, err := NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fs.Upsert(ctx, Retrieval{
		SeriesID:       "EXR.USD",
		RetrievedAtUTC: retrievedAt,
		PayloadHash:    "abc",
		SourceURL:      "https://data.example.org/EXR.USD",
	}))

	got, err := fs.Get(ctx, "EXR.USD")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.PayloadHash)

	_, err = fs.Get(ctx, "MISSING")
	assert.ErrorIs(t, err, ErrNotFound)

	// Reload from disk
	fs2, err := NewFileStore(path)
	require.NoError(t, err)
	got, err = fs2.Get(ctx, "EXR.USD")
	require.NoError(t, err)
	assert.True(t, got.RetrievedAtUTC.Equal(retrievedAt))
}

func TestFileStore_NeverMovesBackwards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	fs, err := NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fs.Upsert(ctx, Retrieval{SeriesID: "EXR", RetrievedAtUTC: retrievedAt, PayloadHash: "new"}))
	require.NoError(t, fs.Upsert(ctx, Retrieval{SeriesID: "EXR", RetrievedAtUTC: retrievedAt.Add(-time.Hour), PayloadHash: "old"}))

	got, err := fs.Get(ctx, "EXR")
	require.NoError(t, err)
	assert.Equal(t, "new", got.PayloadHash)
}

func TestFileStore_LastRetrievals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	fs, err := NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fs.Upsert(ctx, Retrieval{SeriesID: "A", RetrievedAtUTC: retrievedAt}))
	require.NoError(t, fs.Upsert(ctx, Retrieval{SeriesID: "B", RetrievedAtUTC: retrievedAt.Add(time.Hour)}))

	last, err := fs.LastRetrievals(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"A": "2023-01-01T09:00:00Z",
		"B": "2023-01-01T10:00:00Z",
	}, last)
}

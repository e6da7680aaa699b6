// Package store persists per-series retrieval state: the last time each
// series was fetched and with what fingerprint. The staleness report is
// assembled from this state. Stores are explicit objects with a per-process
// lifecycle, injected into their callers, never package-level mutable state.
package store

import (
	"context"
	"errors"
	"time"
)

// Retrieval is the last-known retrieval of one series.
type Retrieval struct {
	SeriesID       string    `json:"series_id"`
	RetrievedAtUTC time.Time `json:"retrieved_at_utc"`
	PayloadHash    string    `json:"payload_hash"`
	SourceURL      string    `json:"source_url"`
}

// ErrNotFound is returned when a series has no recorded retrieval.
var ErrNotFound = errors.New("series retrieval not found")

// Store is the retrieval-state contract. Upsert keeps only the newest
// retrieval per series.
type Store interface {
	Upsert(ctx context.Context, r Retrieval) error
	Get(ctx context.Context, seriesID string) (Retrieval, error)
	// LastRetrievals returns seriesID -> RFC3339 retrieval timestamp for
	// every known series, in the shape the staleness evaluator consumes.
	LastRetrievals(ctx context.Context) (map[string]string, error)
}

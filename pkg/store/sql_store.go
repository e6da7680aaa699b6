package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLStore implements Store using database/sql. It works against both
// Postgres (lib/pq) and SQLite (modernc) via standard drivers; the statements
// stick to syntax both accept.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS series_retrievals (
	series_id TEXT PRIMARY KEY,
	retrieved_at_utc TIMESTAMP NOT NULL,
	payload_hash TEXT,
	source_url TEXT
);
`

// Init creates the schema if absent.
func (s *SQLStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLStore) Upsert(ctx context.Context, r Retrieval) error {
	query := `
		INSERT INTO series_retrievals (series_id, retrieved_at_utc, payload_hash, source_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (series_id) DO UPDATE
		SET retrieved_at_utc = EXCLUDED.retrieved_at_utc,
		    payload_hash = EXCLUDED.payload_hash,
		    source_url = EXCLUDED.source_url
		WHERE EXCLUDED.retrieved_at_utc >= series_retrievals.retrieved_at_utc
	`
	_, err := s.db.ExecContext(ctx, query,
		r.SeriesID, r.RetrievedAtUTC.UTC(), r.PayloadHash, r.SourceURL,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert retrieval: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, seriesID string) (Retrieval, error) {
	query := `SELECT series_id, retrieved_at_utc, payload_hash, source_url FROM series_retrievals WHERE series_id = $1`
	row := s.db.QueryRowContext(ctx, query, seriesID)

	var r Retrieval
	err := row.Scan(&r.SeriesID, &r.RetrievedAtUTC, &r.PayloadHash, &r.SourceURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Retrieval{}, ErrNotFound
		}
		return Retrieval{}, fmt.Errorf("failed to read retrieval: %w", err)
	}
	return r, nil
}

func (s *SQLStore) LastRetrievals(ctx context.Context) (map[string]string, error) {
	query := `SELECT series_id, retrieved_at_utc FROM series_retrievals`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list retrievals: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	out := make(map[string]string)
	for rows.Next() {
		var id string
		var at time.Time
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("failed to scan retrieval row: %w", err)
		}
		out[id] = at.UTC().Format(time.RFC3339)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("retrieval rows iteration failed: %w", err)
	}
	return out, nil
}

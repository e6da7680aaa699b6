package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLStore_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO series_retrievals")).
		WithArgs("EXR.USD", retrievedAt, "abc", "https://data.example.org/EXR.USD").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewSQLStore(db)
	err = s.Upsert(context.Background(), Retrieval{
		SeriesID:       "EXR.USD",
		RetrievedAtUTC: retrievedAt,
		PayloadHash:    "abc",
		SourceURL:      "https://data.example.org/EXR.USD",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_GetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT series_id, retrieved_at_utc, payload_hash, source_url FROM series_retrievals")).
		WithArgs("MISSING").
		WillReturnRows(sqlmock.NewRows([]string{"series_id", "retrieved_at_utc", "payload_hash", "source_url"}))

	s := NewSQLStore(db)
	_, err = s.Get(context.Background(), "MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_LastRetrievals(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"series_id", "retrieved_at_utc"}).
		AddRow("A", retrievedAt).
		AddRow("B", retrievedAt.Add(time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT series_id, retrieved_at_utc FROM series_retrievals")).
		WillReturnRows(rows)

	s := NewSQLStore(db)
	last, err := s.LastRetrievals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2023-01-01T09:00:00Z", last["A"])
	assert.Equal(t, "2023-01-01T10:00:00Z", last["B"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Init(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS series_retrievals")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewSQLStore(db)
	require.NoError(t, s.Init(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

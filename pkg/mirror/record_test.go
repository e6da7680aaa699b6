package mirror

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FreezesRawHash(t *testing.T) {
	payload := []byte(`<gesmes:Envelope>rates</gesmes:Envelope>`)
	rec, err := New("EXR", payload, Provenance{SourceURL: "https://data.example.org/EXR"})
	require.NoError(t, err)

	sum := sha256.Sum256(payload)
	assert.Equal(t, "sha256", rec.RawPayloadHash.Algorithm)
	assert.Equal(t, hex.EncodeToString(sum[:]), rec.RawPayloadHash.Hex)
	assert.True(t, VerifyRecord(rec))
	assert.Nil(t, rec.Normalized)
	assert.Nil(t, rec.NormalizedHash)
}

func TestNew_NormalizedHashIndependent(t *testing.T) {
	norm := &Normalized{
		Observations: []Observation{{Period: "2023-01", Value: "1.0782"}},
	}
	rec, err := New("EXR", []byte("raw"), Provenance{SourceURL: "u"}, WithNormalized(norm))
	require.NoError(t, err)

	require.NotNil(t, rec.NormalizedHash)
	assert.Len(t, rec.NormalizedHash.Hex, 64)
	assert.NotEqual(t, rec.RawPayloadHash.Hex, rec.NormalizedHash.Hex)
}

func TestNew_RejectsInvalidNormalized(t *testing.T) {
	bad := &Normalized{
		Observations: []Observation{{Period: "2023-01", Value: "not-a-number"}},
	}
	_, err := New("EXR", []byte("raw"), Provenance{SourceURL: "u"}, WithNormalized(bad))
	assert.Error(t, err)
}

func TestNew_RetrievedAtOverride(t *testing.T) {
	at := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	rec, err := New("EXR", []byte("x"), Provenance{SourceURL: "u"}, WithRetrievedAt(at))
	require.NoError(t, err)
	assert.Equal(t, "2023-01-01T00:00:00Z", rec.RetrievedAtUTC)
}

func TestVerifyPayload(t *testing.T) {
	payload := []byte("any bytes at all")
	sum := sha256.Sum256(payload)
	b64 := base64.StdEncoding.EncodeToString(payload)

	assert.True(t, VerifyPayload(b64, hex.EncodeToString(sum[:])))
	assert.False(t, VerifyPayload(b64, "00"+hex.EncodeToString(sum[:])[2:]))
	assert.False(t, VerifyPayload("!!!not-base64!!!", hex.EncodeToString(sum[:])))
}

func TestFieldAccessors_PriorityOrder(t *testing.T) {
	obj := map[string]any{
		"retrieved_at_utc": "2023-01-02T00:00:00Z",
		"retrievedAtUtc":   "2023-01-01T00:00:00Z",
	}
	ts, ok := TimestampFromLine(obj)
	require.True(t, ok)
	assert.Equal(t, "2023-01-01T00:00:00Z", ts, "newest alias wins")

	legacy := map[string]any{"retrieved": "2023-01-03T00:00:00Z"}
	ts, ok = TimestampFromLine(legacy)
	require.True(t, ok)
	assert.Equal(t, "2023-01-03T00:00:00Z", ts)

	_, ok = TimestampFromLine(map[string]any{"other": 1})
	assert.False(t, ok)
}

func TestFieldAccessors_HashPaths(t *testing.T) {
	h, ok := PayloadHashFromLine(map[string]any{
		"rawPayloadHash": map[string]any{"hex": "abc"},
	})
	require.True(t, ok)
	assert.Equal(t, "abc", h)

	h, ok = PayloadHashFromLine(map[string]any{
		"raw_payload_hash": map[string]any{"hex": "def"},
	})
	require.True(t, ok)
	assert.Equal(t, "def", h)

	_, ok = PayloadHashFromLine(map[string]any{"rawPayloadHash": "flat"})
	assert.False(t, ok)
}

func TestSanitizeSeriesID(t *testing.T) {
	assert.Equal(t, "EXR.D.USD", SanitizeSeriesID("EXR.D.USD"))
	assert.Equal(t, "_.._.._etc_passwd", SanitizeSeriesID("/../../etc/passwd"))
	assert.Equal(t, "a_b_c", SanitizeSeriesID("a b\x00c"))
}

func TestLog_AppendAndVerify(t *testing.T) {
	dir := t.TempDir()
	log, err := OpenLog(dir)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rec, err := New("EXR", []byte{byte(i)}, Provenance{SourceURL: "u"})
		require.NoError(t, err)
		require.NoError(t, log.Append(rec))
	}

	report, err := VerifyLog(log.SeriesPath("EXR"))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Lines)
	assert.Equal(t, 3, report.Verified)
	assert.Empty(t, report.Corrupt)
}

func TestVerifyLog_FlagsTamperedLine(t *testing.T) {
	dir := t.TempDir()
	log, err := OpenLog(dir)
	require.NoError(t, err)

	rec, err := New("EXR", []byte("original"), Provenance{SourceURL: "u"})
	require.NoError(t, err)
	require.NoError(t, log.Append(rec))

	// Tamper: swap the payload, keep the stored hash
	rec.RawPayload = []byte("tampered")
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	path := log.SeriesPath("EXR")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.Write(append(data, '\n'))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	report, err := VerifyLog(path)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Lines)
	assert.Equal(t, 1, report.Verified)
	assert.Equal(t, []int{2}, report.Corrupt)
	assert.Equal(t, filepath.Base(path), report.File)
}

// Package mirror implements the tamper-evident local mirror of externally
// retrieved reference data. A Record wraps one retrieval event with its
// cryptographic fingerprint and provenance; the per-series log persists
// records append-only, one JSON line each.
package mirror

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/meridianpay/refdata/pkg/canonicalize"
)

// HashRef identifies a digest and its algorithm.
type HashRef struct {
	Algorithm string `json:"algorithm"`
	Hex       string `json:"hex"`
}

// Provenance records exactly the coordinates used to fetch the payload, so
// the retrieval is reproducible.
type Provenance struct {
	SourceURL string `json:"sourceUrl"`
	DatasetID string `json:"datasetId,omitempty"`
	SeriesKey string `json:"seriesKey,omitempty"`
}

// Observation is one (period, value) pair of the normalized projection.
// Value stays a decimal string; the mirror never reformats numbers.
type Observation struct {
	Period string `json:"period"`
	Value  string `json:"value"`
}

// Normalized is the simplified application-facing projection of a payload.
type Normalized struct {
	Observations []Observation  `json:"observations"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Record is one retrieval event for one series. Immutable once created;
// the log only ever appends.
type Record struct {
	SeriesID       string     `json:"seriesId"`
	RetrievedAtUTC string     `json:"retrievedAtUtc"`
	Provenance     Provenance `json:"provenance"`
	// RawPayload holds the exact bytes received, retained verbatim so the
	// fingerprint is reproducible. JSON-encodes as base64.
	RawPayload     []byte      `json:"rawPayload"`
	RawPayloadHash HashRef     `json:"rawPayloadHash"`
	Normalized     *Normalized `json:"normalized,omitempty"`
	NormalizedHash *HashRef    `json:"normalizedHash,omitempty"`
}

// Option configures optional Record fields at construction time.
type Option func(*recordOpts)

type recordOpts struct {
	retrievedAt *time.Time
	normalized  *Normalized
}

// WithRetrievedAt overrides the retrieval timestamp (defaults to now).
func WithRetrievedAt(t time.Time) Option {
	return func(o *recordOpts) { o.retrievedAt = &t }
}

// WithNormalized attaches a normalized projection. Its canonical-form hash
// is computed independently of the raw payload hash so transformation-step
// correctness can be audited separately from fetch-step correctness.
func WithNormalized(n *Normalized) Option {
	return func(o *recordOpts) { o.normalized = n }
}

// New constructs a Record and freezes both hashes. Any byte sequence is a
// valid raw payload; the bytes are treated as opaque.
func New(seriesID string, rawPayload []byte, prov Provenance, opts ...Option) (*Record, error) {
	var o recordOpts
	for _, opt := range opts {
		opt(&o)
	}

	retrievedAt := time.Now().UTC()
	if o.retrievedAt != nil {
		retrievedAt = o.retrievedAt.UTC()
	}

	sum := sha256.Sum256(rawPayload)
	rec := &Record{
		SeriesID:       canonicalize.NFC(seriesID),
		RetrievedAtUTC: retrievedAt.Format(time.RFC3339),
		Provenance:     prov,
		RawPayload:     rawPayload,
		RawPayloadHash: HashRef{Algorithm: "sha256", Hex: hex.EncodeToString(sum[:])},
	}

	if o.normalized != nil {
		if err := ValidateNormalized(o.normalized); err != nil {
			return nil, err
		}
		h, err := canonicalize.CanonicalHash(o.normalized)
		if err != nil {
			return nil, err
		}
		rec.Normalized = o.normalized
		rec.NormalizedHash = &HashRef{Algorithm: "sha256", Hex: h}
	}

	return rec, nil
}

// VerifyPayload recomputes SHA-256 over base64-decoded raw bytes and compares
// against the expected hex digest. Downstream consumers use this to re-attest
// authenticity without trusting the stored hash field. Malformed base64
// never verifies.
func VerifyPayload(rawBase64, expectedHex string) bool {
	raw, err := base64.StdEncoding.DecodeString(rawBase64)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]) == expectedHex
}

// VerifyRecord recomputes the raw payload hash of a decoded Record.
func VerifyRecord(rec *Record) bool {
	sum := sha256.Sum256(rec.RawPayload)
	return hex.EncodeToString(sum[:]) == rec.RawPayloadHash.Hex
}

// Package manifest seals a day's worth of mirrored reference-data records
// into one canonicalized, hashed, optionally signed, immutable manifest file.
// Corrupt input never taints the attested manifest: every rejected line is
// recorded as a diagnostic, and integrity violations beyond the configured
// threshold abort the run before anything reaches disk.
package manifest

import (
	"errors"
	"time"
)

// SchemaVersion is the manifest format version, stamped into signature
// records and checked (semver-compatible) on read-back.
const SchemaVersion = "1.0.0"

// Entry is one accepted mirror record's audit projection.
type Entry struct {
	SeriesID       string `json:"series_id"`
	PayloadHash    string `json:"payload_hash"`
	RetrievedAtUTC string `json:"retrieved_at_utc"`
}

// Manifest is the sealed daily attestation. The on-disk form is canonical
// NDJSON of Entries only; ManifestHash is the content-addressed digest of
// exactly the set of facts being attested.
type Manifest struct {
	Date         string       `json:"date"`
	CreatedAtUTC time.Time    `json:"created_at_utc"`
	Entries      []Entry      `json:"entries"`
	ManifestHash string       `json:"manifest_hash"`
	Diagnostics  []Diagnostic `json:"diagnostics,omitempty"`
	Path         string       `json:"-"`
}

// Diagnostic records one rejected input line. Never silently dropped;
// persisted to the companion diagnostics file for audit.
type Diagnostic struct {
	File       string `json:"file"`
	LineNumber int    `json:"lineNumber"`
	Error      string `json:"error"`
	Raw        string `json:"raw,omitempty"`
}

// SignatureRecord is the optional detached signature accompanying a sealed
// manifest.
type SignatureRecord struct {
	Manifest      string `json:"manifest"`
	ManifestHash  string `json:"manifest_hash"`
	SchemaVersion string `json:"schema_version"`
	Signer        struct {
		Algorithm string `json:"algorithm"`
		KeyID     string `json:"keyId"`
	} `json:"signer"`
	Signature    string    `json:"signature"`
	CreatedAtUTC time.Time `json:"created_at_utc"`
}

// Counters aggregates one run's line accounting. Every input line maps to
// exactly one of accepted entry or diagnostic.
type Counters struct {
	TotalLinesRead     int `json:"total_lines_read"`
	ParsedOK           int `json:"parsed_ok"`
	ParseErrors        int `json:"parse_errors"`
	MissingTimestamp   int `json:"missing_retrieved_timestamp"`
	InvalidTimestamp   int `json:"invalid_timestamp"`
	DateMismatch       int `json:"date_mismatch"`
	MissingPayloadHash int `json:"missing_payload_hash"`
	InvalidPayloadHash int `json:"invalid_payload_hash"`
}

// IntegrityErrors counts ERROR-severity violations only. WARN-level
// data-quality issues (timestamp problems, wrong-date records) stay visible
// but never count against the fatal threshold.
func (c Counters) IntegrityErrors() int {
	return c.ParseErrors + c.MissingPayloadHash + c.InvalidPayloadHash
}

// Stable structured log event names, consumed by the alerting pipeline.
const (
	EventRecordInvalidJSON       = "manifest_record_invalid_json"
	EventRecordMissingHash       = "manifest_record_missing_payload_hash"
	EventRecordInvalidHash       = "manifest_record_invalid_payload_hash"
	EventRecordMissingTimestamp  = "manifest_record_missing_retrieved_timestamp"
	EventRecordInvalidTimestamp  = "manifest_record_invalid_timestamp"
	EventRecordRejected          = "manifest_record_rejected"
	EventProcessingSummary       = "manifest_processing_summary"
	EventThresholdExceeded       = "manifest_integrity_threshold_exceeded"
	EventDiagnosticsWritten      = "diagnostics_written"
)

// Error categories, one per validation rule.
const (
	CategoryParseError       = "json parse error"
	CategoryMissingTimestamp = "missing retrieved timestamp"
	CategoryInvalidTimestamp = "invalid timestamp"
	CategoryDateMismatch     = "record date does not match manifest date"
	CategoryMissingHash      = "missing payload hash"
	CategoryInvalidHash      = "invalid payload hash format"
)

var (
	// ErrAlreadyExists means a manifest for the date is already sealed.
	// Re-running for a sealed date is an operator error, never merged over.
	ErrAlreadyExists = errors.New("manifest already exists for date")

	// ErrThresholdExceeded means integrity violations exceeded the
	// configured tolerance; no manifest was written.
	ErrThresholdExceeded = errors.New("integrity violations exceeded threshold")
)

package manifest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/meridianpay/refdata/pkg/canonicalize"
	"github.com/meridianpay/refdata/pkg/crypto"
	"github.com/meridianpay/refdata/pkg/mirror"
	"github.com/meridianpay/refdata/pkg/observability"
)

// DefaultErrorThreshold is the default tolerance for integrity errors per run.
const DefaultErrorThreshold = 10

var hashHexPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Generator seals daily manifests. Construct once per process; each
// Generate call carries its own run state (no package-level mutable stores).
type Generator struct {
	threshold int
	signer    crypto.Signer
	logger    *slog.Logger
	clock     func() time.Time
	metrics   *observability.Metrics
}

// Option configures a Generator.
type Option func(*Generator)

// WithErrorThreshold sets the integrity-error tolerance.
func WithErrorThreshold(n int) Option {
	return func(g *Generator) { g.threshold = n }
}

// WithSigner enables detached signing of sealed manifests.
func WithSigner(s crypto.Signer) Option {
	return func(g *Generator) { g.signer = s }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithClock overrides the clock for deterministic testing.
func WithClock(clock func() time.Time) Option {
	return func(g *Generator) { g.clock = clock }
}

// WithMetrics attaches pipeline counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// NewGenerator creates a manifest generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		threshold: DefaultErrorThreshold,
		logger:    slog.Default().With("component", "manifest"),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// runState is the per-run mutable state: counters, diagnostics, and accepted
// entries. Created fresh for every Generate call.
type runState struct {
	runID    string
	counters Counters
	diags    []Diagnostic
	entries  []Entry
}

// Generate seals one UTC calendar day of mirror logs into a manifest.
// manifestDir defaults to mirrorDir when empty. Fails with ErrAlreadyExists
// if the date is already sealed, and with ErrThresholdExceeded (writing no
// manifest) when integrity violations exceed the tolerance.
func (g *Generator) Generate(ctx context.Context, mirrorDir, dateUTC, manifestDir string) (*Manifest, error) {
	if _, err := time.Parse("2006-01-02", dateUTC); err != nil {
		return nil, fmt.Errorf("invalid manifest date %q: %w", dateUTC, err)
	}
	if manifestDir == "" {
		manifestDir = mirrorDir
	}

	manifestPath := filepath.Join(manifestDir, "manifest-"+dateUTC+".ndjson")
	if _, err := os.Stat(manifestPath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, manifestPath)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat manifest path: %w", err)
	}
	//nolint:gosec // G301: 0755 is intentional for the shared manifest directory
	if err := os.MkdirAll(manifestDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure manifest dir: %w", err)
	}

	run := &runState{runID: uuid.New().String()}
	logger := g.logger.With("run_id", run.runID, "date", dateUTC)

	files, err := filepath.Glob(filepath.Join(mirrorDir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate mirror dir: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		if strings.HasSuffix(file, ".diagnostics.jsonl") {
			continue
		}
		if err := g.scanFile(ctx, logger, run, file, dateUTC); err != nil {
			return nil, err
		}
	}

	diagPath := filepath.Join(manifestDir, "manifest-"+dateUTC+".diagnostics.jsonl")
	if len(run.diags) > 0 {
		if err := g.writeDiagnostics(diagPath, run.diags); err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, EventDiagnosticsWritten,
			"path", diagPath, "count", len(run.diags))
	}

	logger.InfoContext(ctx, EventProcessingSummary,
		"total_lines_read", run.counters.TotalLinesRead,
		"parsed_ok", run.counters.ParsedOK,
		"parse_errors", run.counters.ParseErrors,
		"missing_retrieved_timestamp", run.counters.MissingTimestamp,
		"invalid_timestamp", run.counters.InvalidTimestamp,
		"date_mismatch", run.counters.DateMismatch,
		"missing_payload_hash", run.counters.MissingPayloadHash,
		"invalid_payload_hash", run.counters.InvalidPayloadHash,
		"integrity_errors", run.counters.IntegrityErrors(),
		"accepted", len(run.entries),
	)

	if n := run.counters.IntegrityErrors(); n > g.threshold {
		g.metrics.ThresholdTrip(ctx)
		logger.ErrorContext(ctx, EventThresholdExceeded,
			"integrity_errors", n,
			"threshold", g.threshold,
			"retryable", false,
		)
		return nil, fmt.Errorf("%w: Integrity violations (%d) exceeded threshold (%d) for date %s",
			ErrThresholdExceeded, n, g.threshold, dateUTC)
	}

	sortEntries(run.entries)

	lines, err := entryLines(run.entries)
	if err != nil {
		return nil, err
	}
	manifestHash := canonicalize.HashBytes(bytes.Join(lines, []byte("\n")))

	var fileBytes []byte
	for _, line := range lines {
		fileBytes = append(fileBytes, line...)
		fileBytes = append(fileBytes, '\n')
	}

	if err := writeSealed(manifestPath, fileBytes); err != nil {
		return nil, err
	}
	g.metrics.ManifestSealed(ctx)
	for range run.entries {
		g.metrics.RecordAccepted(ctx)
	}

	m := &Manifest{
		Date:         dateUTC,
		CreatedAtUTC: g.clock().UTC(),
		Entries:      run.entries,
		ManifestHash: manifestHash,
		Diagnostics:  run.diags,
		Path:         manifestPath,
	}

	if g.signer != nil {
		if err := g.writeSignature(m, fileBytes, manifestDir); err != nil {
			return nil, err
		}
	}

	logger.InfoContext(ctx, "manifest_sealed",
		"path", manifestPath,
		"manifest_hash", manifestHash,
		"entries", len(m.Entries),
	)
	return m, nil
}

// scanFile validates every line of one per-series log, in file order, so
// diagnostics carry deterministic 1-based line numbers.
func (g *Generator) scanFile(ctx context.Context, logger *slog.Logger, run *runState, path, dateUTC string) error {
	f, err := os.Open(path) //nolint:gosec // enumerated from the mirror dir
	if err != nil {
		return fmt.Errorf("failed to open mirror log: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	base := filepath.Base(path)
	fallbackSeries := strings.TrimSuffix(base, ".jsonl")

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		run.counters.TotalLinesRead++
		g.validateLine(ctx, logger, run, base, fallbackSeries, lineNo, line, dateUTC)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to scan %s: %w", base, err)
	}
	return nil
}

// validateLine applies the validation rules in fixed order, rejecting at the
// first failure with exactly one diagnostic. A line that passes every check
// yields exactly one entry.
func (g *Generator) validateLine(ctx context.Context, logger *slog.Logger, run *runState, file, fallbackSeries string, lineNo int, line []byte, dateUTC string) {
	reject := func(event, category, severity, raw string) {
		run.diags = append(run.diags, Diagnostic{
			File:       file,
			LineNumber: lineNo,
			Error:      category,
			Raw:        raw,
		})
		g.metrics.RecordRejected(ctx, category)
		attrs := []any{
			"file", file,
			"line", lineNo,
			"error_category", category,
			"severity", severity,
			"retryable", false,
		}
		if severity == "ERROR" {
			logger.ErrorContext(ctx, event, attrs...)
		} else {
			logger.WarnContext(ctx, event, attrs...)
		}
	}

	var obj map[string]any
	if err := json.Unmarshal(line, &obj); err != nil {
		run.counters.ParseErrors++
		reject(EventRecordInvalidJSON, CategoryParseError, "ERROR", truncate(string(line), 200))
		return
	}
	run.counters.ParsedOK++

	ts, ok := mirror.TimestampFromLine(obj)
	if !ok {
		run.counters.MissingTimestamp++
		reject(EventRecordMissingTimestamp, CategoryMissingTimestamp, "WARN", "")
		return
	}

	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		run.counters.InvalidTimestamp++
		reject(EventRecordInvalidTimestamp, CategoryInvalidTimestamp, "WARN", "")
		return
	}

	if parsed.UTC().Format("2006-01-02") != dateUTC {
		run.counters.DateMismatch++
		reject(EventRecordRejected, CategoryDateMismatch, "WARN", "")
		return
	}

	hash, ok := mirror.PayloadHashFromLine(obj)
	if !ok {
		run.counters.MissingPayloadHash++
		reject(EventRecordMissingHash, CategoryMissingHash, "ERROR", "")
		return
	}

	if !hashHexPattern.MatchString(hash) {
		run.counters.InvalidPayloadHash++
		reject(EventRecordInvalidHash, CategoryInvalidHash, "ERROR", "")
		return
	}

	seriesID := fallbackSeries
	if s, ok := mirror.SeriesIDFromLine(obj); ok {
		seriesID = s
	}

	run.entries = append(run.entries, Entry{
		SeriesID:       seriesID,
		PayloadHash:    hash,
		RetrievedAtUTC: ts,
	})
}

// sortEntries orders entries by (series_id, retrieved_at_utc, payload_hash)
// ascending, bytewise, so identical input always produces byte-identical
// manifests.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.SeriesID != b.SeriesID {
			return a.SeriesID < b.SeriesID
		}
		if a.RetrievedAtUTC != b.RetrievedAtUTC {
			return a.RetrievedAtUTC < b.RetrievedAtUTC
		}
		return a.PayloadHash < b.PayloadHash
	})
}

func entryLines(entries []Entry) ([][]byte, error) {
	lines := make([][]byte, 0, len(entries))
	for _, e := range entries {
		line, err := canonicalize.JCS(e)
		if err != nil {
			return nil, fmt.Errorf("failed to canonicalize entry: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (g *Generator) writeDiagnostics(path string, diags []Diagnostic) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, d := range diags {
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("failed to encode diagnostic: %w", err)
		}
	}
	// A previous run for this date may have aborted over threshold and left
	// a sealed diagnostics file behind; only the manifest itself is
	// idempotent-by-rejection.
	if _, err := os.Stat(path); err == nil {
		_ = os.Chmod(path, 0600) //nolint:errcheck // unseal before replace
		_ = os.Remove(path)      //nolint:errcheck // replaced below
	}
	return writeSealed(path, buf.Bytes())
}

func (g *Generator) writeSignature(m *Manifest, manifestBytes []byte, manifestDir string) error {
	sig, err := g.signer.Sign(manifestBytes)
	if err != nil {
		return fmt.Errorf("manifest signing failed: %w", err)
	}

	rec := SignatureRecord{
		Manifest:      filepath.Base(m.Path),
		ManifestHash:  m.ManifestHash,
		SchemaVersion: SchemaVersion,
		Signature:     sig,
		CreatedAtUTC:  g.clock().UTC(),
	}
	rec.Signer.Algorithm = g.signer.Algorithm()
	rec.Signer.KeyID = g.signer.KeyID()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal signature record: %w", err)
	}

	sigPath := filepath.Join(manifestDir, "manifest-"+m.Date+".sig.json")
	return writeSealed(sigPath, append(data, '\n'))
}

// writeSealed writes data to a temp path, atomically renames it into place,
// then downgrades permissions to read-only. A crash between steps never
// leaves a partially-written file visible under its final name.
func writeSealed(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(tmpPath), err)
	}
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("%w: %s", ErrAlreadyExists, path)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to commit %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(path, 0444); err != nil {
		// Best-effort seal; the atomic rename already happened.
		return nil //nolint:nilerr // permission downgrade is advisory
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

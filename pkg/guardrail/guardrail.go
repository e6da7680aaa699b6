// Package guardrail is the capability gate in front of every reader of
// mirrored reference data. Access is authorized by declared purpose, on a
// strict allow-list: reporting and analytics may read, settlement and
// authorization are structurally denied, and anything unrecognized is denied
// by default. Denial is always loud: a typed error and a structured log,
// never a silent empty result.
package guardrail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/meridianpay/refdata/pkg/mirror"
	"github.com/meridianpay/refdata/pkg/observability"
)

// Purpose is the caller's declared intent.
type Purpose string

const (
	PurposeReporting Purpose = "reporting"
	PurposeAnalytics Purpose = "analytics"
	// Named so settlement/authorization code can state what it is being
	// denied for; never in the allow-list.
	PurposeSettlement    Purpose = "settlement"
	PurposeAuthorization Purpose = "authorization"
)

var allowedPurposes = map[Purpose]bool{
	PurposeReporting: true,
	PurposeAnalytics: true,
}

// Disclosure is stamped verbatim on every record returned through the gate.
const Disclosure = "ECB reference rates are published for information purposes only and must not be used for transaction pricing or settlement."

// tailWindow caps how much of a series log the gate will ever read. A hard
// resource ceiling, not a performance optimization.
const tailWindow = 64 * 1024

var seriesIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Denial categories carried on AccessError and denial logs.
const (
	CategoryPurposeDenied    = "purpose not allowed"
	CategoryInvalidSeriesID  = "invalid series id"
	CategoryPathTraversal    = "path traversal blocked"
	CategorySettlementDenied = "settlement access prohibited"
)

// AccessError is the typed denial returned by every gate method.
type AccessError struct {
	Purpose  Purpose
	Caller   string
	Category string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("reference data access denied (%s): purpose=%q caller=%q", e.Category, e.Purpose, e.Caller)
}

// ReadRequest addresses one purpose-gated read of normalized data.
type ReadRequest struct {
	SeriesID  string
	MirrorDir string
	Purpose   Purpose
	Caller    string
}

// AdvisorySeries is the only shape reference data leaves the gate in. Rates
// are decimal strings, never native numerics, so accidental arithmetic on
// advisory data is structurally inconvenient.
type AdvisorySeries struct {
	SeriesID       string               `json:"seriesId"`
	RetrievedAtUTC string               `json:"retrievedAtUtc"`
	Observations   []mirror.Observation `json:"observations"`
	Metadata       map[string]any       `json:"metadata,omitempty"`
	Advisory       bool                 `json:"advisory"`
	Disclosure     string               `json:"disclosure"`
}

// Gate enforces purpose-based access to the mirror.
type Gate struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// WithMetrics attaches pipeline counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// New creates a Gate.
func New(opts ...Option) *Gate {
	g := &Gate{logger: slog.Default().With("component", "guardrail")}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// VerifyAccess fails closed unless purpose is on the allow-list.
func (g *Gate) VerifyAccess(ctx context.Context, purpose Purpose, caller string) error {
	if allowedPurposes[purpose] {
		return nil
	}
	return g.deny(ctx, purpose, caller, CategoryPurposeDenied)
}

// DenyForSettlement is an unconditional denial, provided so settlement and
// authorization modules can make the prohibition explicit and unit-testable
// at their own boundary.
func (g *Gate) DenyForSettlement(ctx context.Context, caller string) error {
	return g.deny(ctx, PurposeSettlement, caller, CategorySettlementDenied)
}

// NormalizedForPurpose reads the latest normalized projection of a series,
// for an allowed purpose only. There is no read API that bypasses the gate.
// Returns nil (not an error) when no record exists; absence is a normal
// state, distinct from a security violation.
func (g *Gate) NormalizedForPurpose(ctx context.Context, req ReadRequest) (*AdvisorySeries, error) {
	if err := g.VerifyAccess(ctx, req.Purpose, req.Caller); err != nil {
		return nil, err
	}

	if !seriesIDPattern.MatchString(req.SeriesID) || strings.Trim(req.SeriesID, ".") == "" {
		return nil, g.deny(ctx, req.Purpose, req.Caller, CategoryInvalidSeriesID)
	}

	path := filepath.Join(req.MirrorDir, req.SeriesID+".jsonl")
	// The charset check already excludes separators; re-verify the resolved
	// path anyway, against traversal via a crafted id.
	cleanDir := filepath.Clean(req.MirrorDir)
	if !strings.HasPrefix(filepath.Clean(path), cleanDir+string(filepath.Separator)) {
		return nil, g.deny(ctx, req.Purpose, req.Caller, CategoryPathTraversal)
	}

	line, err := tailLine(path, tailWindow)
	if err != nil {
		return nil, err
	}
	if line == nil {
		return nil, nil
	}

	var rec mirror.Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("latest record of %s is unreadable: %w", req.SeriesID, err)
	}
	if rec.Normalized == nil {
		return nil, nil
	}

	g.logger.InfoContext(ctx, "refdata_access_granted",
		"series_id", req.SeriesID,
		"purpose", string(req.Purpose),
		"caller", req.Caller,
	)

	return &AdvisorySeries{
		SeriesID:       rec.SeriesID,
		RetrievedAtUTC: rec.RetrievedAtUTC,
		Observations:   rec.Normalized.Observations,
		Metadata:       rec.Normalized.Metadata,
		Advisory:       true,
		Disclosure:     Disclosure,
	}, nil
}

func (g *Gate) deny(ctx context.Context, purpose Purpose, caller, category string) error {
	g.metrics.AccessDenied(ctx, string(purpose))
	g.logger.ErrorContext(ctx, "refdata_access_denied",
		"error_category", category,
		"purpose", string(purpose),
		"caller", caller,
		"retryable", false,
	)
	return &AccessError{Purpose: purpose, Caller: caller, Category: category}
}

// Package staleness classifies reference-data series as FRESH, STALE, or
// UNAVAILABLE and gates automated policy actions on freshness. Evaluations
// are derived values, pure functions of (retrievedAtUtc, config, now); they
// are never stored and never panic on malformed upstream data.
package staleness

import (
	"fmt"
	"sort"
	"time"
)

// State is the freshness classification of one series.
type State string

const (
	StateFresh       State = "FRESH"
	StateStale       State = "STALE"
	StateUnavailable State = "UNAVAILABLE"
)

// DefaultMaxAgeSeconds is the safe default freshness window applied when a
// series has no configured window.
const DefaultMaxAgeSeconds int64 = 86400

// SeriesConfig is the per-series freshness policy. A zero MaxAgeSeconds is
// honored as written, so any nonzero age evaluates STALE.
type SeriesConfig struct {
	MaxAgeSeconds int64 `json:"maxAgeSeconds" yaml:"max_age_seconds"`
}

// Evaluation is the derived freshness verdict for one series.
type Evaluation struct {
	SeriesID          string `json:"seriesId"`
	State             State  `json:"state"`
	AgeSeconds        *int64 `json:"ageSeconds,omitempty"`
	MaxAllowedSeconds *int64 `json:"maxAllowedSeconds,omitempty"`
	Note              string `json:"note"`
}

// Decision is the automation gate's outcome.
type Decision struct {
	Allowed  bool         `json:"allowed"`
	Blocking []Evaluation `json:"blocking,omitempty"`
}

// Evaluate classifies one series. A missing retrievedAtUTC means
// UNAVAILABLE; an unparsable one is also UNAVAILABLE, never an error.
// A nil cfg applies the default window. A configured window of zero is a
// zero-tolerance policy, not an unset value; only a negative window falls
// back to the default. Age exactly equal to the window is still FRESH.
func Evaluate(seriesID, retrievedAtUTC string, cfg *SeriesConfig, now time.Time) Evaluation {
	maxAge := DefaultMaxAgeSeconds
	if cfg != nil && cfg.MaxAgeSeconds >= 0 {
		maxAge = cfg.MaxAgeSeconds
	}

	if retrievedAtUTC == "" {
		return Evaluation{
			SeriesID: seriesID,
			State:    StateUnavailable,
			Note:     "no retrieval recorded",
		}
	}

	retrievedAt, err := time.Parse(time.RFC3339, retrievedAtUTC)
	if err != nil {
		return Evaluation{
			SeriesID: seriesID,
			State:    StateUnavailable,
			Note:     "unparsable retrieval timestamp",
		}
	}

	age := int64(now.Sub(retrievedAt) / time.Second)
	state := StateFresh
	note := fmt.Sprintf("last retrieval %ds ago, window %ds", age, maxAge)
	if age > maxAge {
		state = StateStale
	}

	return Evaluation{
		SeriesID:          seriesID,
		State:             state,
		AgeSeconds:        &age,
		MaxAllowedSeconds: &maxAge,
		Note:              note,
	}
}

// AllowAutomatedPolicyChange is the single chokepoint for wiring automated
// actions to reference-data freshness. Callers must route the decision
// through here rather than re-implementing the comparison, so the
// "STALE blocks automation" rule cannot be duplicated and drift.
//
// With requiredSeries given, only those series are considered; otherwise all
// evaluations are. Allowed is true iff every considered evaluation is FRESH.
func AllowAutomatedPolicyChange(evals []Evaluation, requiredSeries ...string) Decision {
	required := make(map[string]bool, len(requiredSeries))
	for _, s := range requiredSeries {
		required[s] = true
	}

	decision := Decision{Allowed: true}
	for _, e := range evals {
		if len(required) > 0 && !required[e.SeriesID] {
			continue
		}
		if e.State != StateFresh {
			decision.Allowed = false
			decision.Blocking = append(decision.Blocking, e)
		}
	}
	return decision
}

// EvaluateAll evaluates every series with a recorded retrieval and
// synthesizes UNAVAILABLE evaluations for every configured series with no
// mirror record at all, so missing data is never silently excluded from a
// freshness report. lastRetrievals maps series id to its most recent
// retrievedAtUtc. Output is sorted by series id.
func EvaluateAll(lastRetrievals map[string]string, configs map[string]SeriesConfig, now time.Time) []Evaluation {
	seen := make(map[string]bool, len(lastRetrievals))
	evals := make([]Evaluation, 0, len(lastRetrievals)+len(configs))

	for seriesID, retrievedAt := range lastRetrievals {
		seen[seriesID] = true
		evals = append(evals, Evaluate(seriesID, retrievedAt, configFor(configs, seriesID), now))
	}
	for seriesID := range configs {
		if !seen[seriesID] {
			evals = append(evals, Evaluate(seriesID, "", configFor(configs, seriesID), now))
		}
	}

	sort.Slice(evals, func(i, j int) bool { return evals[i].SeriesID < evals[j].SeriesID })
	return evals
}

func configFor(configs map[string]SeriesConfig, seriesID string) *SeriesConfig {
	if configs == nil {
		return nil
	}
	if cfg, ok := configs[seriesID]; ok {
		return &cfg
	}
	return nil
}

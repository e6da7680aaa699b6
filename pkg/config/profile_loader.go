package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/meridianpay/refdata/pkg/staleness"
)

// FreshnessProfile declares per-series freshness windows and which series
// must be fresh before an automated policy change may proceed.
type FreshnessProfile struct {
	// DefaultMaxAgeSeconds applies to series without an explicit entry.
	// Zero means use the built-in default.
	DefaultMaxAgeSeconds int64 `yaml:"default_max_age_seconds"`

	// Series maps series identifiers to their freshness window.
	Series map[string]SeriesProfile `yaml:"series"`

	// RequiredSeries lists the series that gate automated policy changes.
	RequiredSeries []string `yaml:"required_series"`
}

// SeriesProfile is the freshness window for one series. MaxAgeSeconds is a
// pointer so an explicit zero (a zero-tolerance policy) is distinguishable
// from an absent key, which inherits the profile default.
type SeriesProfile struct {
	MaxAgeSeconds *int64 `yaml:"max_age_seconds"`
}

// LoadProfile loads a freshness profile from a YAML file.
func LoadProfile(path string) (*FreshnessProfile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied profile path
	if err != nil {
		return nil, fmt.Errorf("load freshness profile: %w", err)
	}

	var profile FreshnessProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse freshness profile: %w", err)
	}

	for id, sp := range profile.Series {
		if sp.MaxAgeSeconds != nil && *sp.MaxAgeSeconds < 0 {
			return nil, fmt.Errorf("series %q: max_age_seconds must not be negative", id)
		}
	}
	if profile.DefaultMaxAgeSeconds < 0 {
		return nil, fmt.Errorf("default_max_age_seconds must not be negative")
	}

	return &profile, nil
}

// SeriesConfigs converts the profile into per-series evaluation configs.
func (p *FreshnessProfile) SeriesConfigs() map[string]staleness.SeriesConfig {
	configs := make(map[string]staleness.SeriesConfig, len(p.Series))
	for id, sp := range p.Series {
		maxAge := p.DefaultMaxAgeSeconds
		if maxAge == 0 {
			maxAge = staleness.DefaultMaxAgeSeconds
		}
		if sp.MaxAgeSeconds != nil {
			maxAge = *sp.MaxAgeSeconds
		}
		configs[id] = staleness.SeriesConfig{MaxAgeSeconds: maxAge}
	}
	return configs
}

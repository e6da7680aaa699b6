package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProfile = `
default_max_age_seconds: 172800
series:
  ECB_FX_EUR_USD:
    max_age_seconds: 86400
  ECB_FX_EUR_GBP: {}
required_series:
  - ECB_FX_EUR_USD
`

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "freshness.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadProfile(t *testing.T) {
	p, err := LoadProfile(writeProfile(t, sampleProfile))
	require.NoError(t, err)

	assert.Equal(t, int64(172800), p.DefaultMaxAgeSeconds)
	assert.Equal(t, []string{"ECB_FX_EUR_USD"}, p.RequiredSeries)

	configs := p.SeriesConfigs()
	assert.Equal(t, int64(86400), configs["ECB_FX_EUR_USD"].MaxAgeSeconds)
	// Series without an explicit window inherit the profile default.
	assert.Equal(t, int64(172800), configs["ECB_FX_EUR_GBP"].MaxAgeSeconds)
}

func TestLoadProfileExplicitZeroWindow(t *testing.T) {
	p, err := LoadProfile(writeProfile(t, `
default_max_age_seconds: 172800
series:
  ECB_FX_EUR_USD:
    max_age_seconds: 0
`))
	require.NoError(t, err)

	// An explicit zero is a zero-tolerance policy, not an absent key.
	configs := p.SeriesConfigs()
	assert.Equal(t, int64(0), configs["ECB_FX_EUR_USD"].MaxAgeSeconds)
}

func TestLoadProfileNegativeWindow(t *testing.T) {
	_, err := LoadProfile(writeProfile(t, "series:\n  X:\n    max_age_seconds: -1\n"))
	assert.ErrorContains(t, err, "must not be negative")
}

func TestLoadProfileMissingFile(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadProfileMalformedYAML(t *testing.T) {
	_, err := LoadProfile(writeProfile(t, "series: [not a map"))
	assert.ErrorContains(t, err, "parse freshness profile")
}

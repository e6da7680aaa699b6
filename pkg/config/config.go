// Package config loads pipeline configuration from the environment and
// per-series freshness profiles from YAML.
package config

import (
	"os"
	"strconv"
)

// Config holds pipeline configuration.
type Config struct {
	MirrorDir      string
	ManifestDir    string
	StateDBPath    string
	LogLevel       string
	ErrorThreshold int
	SigningKeyHex  string // Optional hex-encoded Ed25519 master key for HKDF derivation
	ProfilePath    string // Optional freshness profile YAML
}

// Load loads configuration from environment variables.
func Load() *Config {
	mirrorDir := os.Getenv("REFDATA_MIRROR_DIR")
	if mirrorDir == "" {
		mirrorDir = "./mirror"
	}

	manifestDir := os.Getenv("REFDATA_MANIFEST_DIR")
	if manifestDir == "" {
		manifestDir = mirrorDir
	}

	statePath := os.Getenv("REFDATA_STATE_DB")
	if statePath == "" {
		statePath = "./refdata-state.db"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	threshold := 10
	if raw := os.Getenv("REFDATA_ERROR_THRESHOLD"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			threshold = n
		}
	}

	return &Config{
		MirrorDir:      mirrorDir,
		ManifestDir:    manifestDir,
		StateDBPath:    statePath,
		LogLevel:       logLevel,
		ErrorThreshold: threshold,
		SigningKeyHex:  os.Getenv("REFDATA_SIGNING_KEY"),
		ProfilePath:    os.Getenv("REFDATA_FRESHNESS_PROFILE"),
	}
}

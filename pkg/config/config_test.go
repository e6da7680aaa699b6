package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meridianpay/refdata/pkg/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REFDATA_MIRROR_DIR", "")
	t.Setenv("REFDATA_MANIFEST_DIR", "")
	t.Setenv("REFDATA_STATE_DB", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("REFDATA_ERROR_THRESHOLD", "")
	t.Setenv("REFDATA_SIGNING_KEY", "")

	cfg := config.Load()

	assert.Equal(t, "./mirror", cfg.MirrorDir)
	assert.Equal(t, "./mirror", cfg.ManifestDir)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, 10, cfg.ErrorThreshold)
	assert.Empty(t, cfg.SigningKeyHex)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REFDATA_MIRROR_DIR", "/data/mirror")
	t.Setenv("REFDATA_MANIFEST_DIR", "/data/manifests")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("REFDATA_ERROR_THRESHOLD", "0")

	cfg := config.Load()

	assert.Equal(t, "/data/mirror", cfg.MirrorDir)
	assert.Equal(t, "/data/manifests", cfg.ManifestDir)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, 0, cfg.ErrorThreshold)
}

func TestLoadManifestDirDefaultsToMirrorDir(t *testing.T) {
	t.Setenv("REFDATA_MIRROR_DIR", "/srv/refdata")
	t.Setenv("REFDATA_MANIFEST_DIR", "")

	cfg := config.Load()

	assert.Equal(t, "/srv/refdata", cfg.ManifestDir)
}

func TestLoadInvalidThresholdKeepsDefault(t *testing.T) {
	t.Setenv("REFDATA_ERROR_THRESHOLD", "-3")

	cfg := config.Load()

	assert.Equal(t, 10, cfg.ErrorThreshold)
}

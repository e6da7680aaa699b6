package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/meridianpay/refdata/pkg/canonicalize"
	"github.com/meridianpay/refdata/pkg/crypto"
)

// supportedSchema accepts any 1.x manifest on read-back.
var supportedSchema = func() *semver.Constraints {
	c, err := semver.NewConstraint("^1.0.0")
	if err != nil {
		panic(err)
	}
	return c
}()

// VerifyResult reports the outcome of re-attesting a sealed manifest.
type VerifyResult struct {
	Path           string `json:"path"`
	Entries        int    `json:"entries"`
	ManifestHash   string `json:"manifest_hash"`
	SignatureValid *bool  `json:"signature_valid,omitempty"` // nil when no signature file
}

// Verify re-reads a sealed manifest file, recomputes its content hash from
// the entry lines, and, when a companion signature file exists, checks the
// record's declared schema version against the supported range, the stored
// manifest hash against the recomputed one, and the signature against the
// supplied public key. A signature record whose manifest_hash disagrees
// with the recomputed hash is an error, never a quiet result field.
func Verify(manifestPath, pubKeyHex string) (*VerifyResult, error) {
	data, err := os.ReadFile(manifestPath) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	lines := splitLines(data)
	for i, line := range lines {
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("manifest line %d is not a valid entry: %w", i+1, err)
		}
	}
	computed := canonicalize.HashBytes(bytes.Join(lines, []byte("\n")))

	result := &VerifyResult{
		Path:         manifestPath,
		Entries:      len(lines),
		ManifestHash: computed,
	}

	sigPath := strings.TrimSuffix(manifestPath, ".ndjson") + ".sig.json"
	sigData, err := os.ReadFile(sigPath) //nolint:gosec // derived from manifest path
	if os.IsNotExist(err) {
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read signature record: %w", err)
	}

	var rec SignatureRecord
	if err := json.Unmarshal(sigData, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode signature record: %w", err)
	}

	if rec.SchemaVersion != "" {
		v, err := semver.NewVersion(rec.SchemaVersion)
		if err != nil {
			return nil, fmt.Errorf("signature record carries invalid schema version %q: %w", rec.SchemaVersion, err)
		}
		if !supportedSchema.Check(v) {
			return nil, fmt.Errorf("unsupported manifest schema version %s", rec.SchemaVersion)
		}
	}

	if rec.ManifestHash != computed {
		return nil, fmt.Errorf("signature record manifest_hash %s does not match recomputed hash %s", rec.ManifestHash, computed)
	}

	if pubKeyHex != "" {
		ok, err := crypto.Verify(pubKeyHex, rec.Signature, data)
		if err != nil {
			return nil, fmt.Errorf("signature verification failed: %w", err)
		}
		result.SignatureValid = &ok
	}

	return result, nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

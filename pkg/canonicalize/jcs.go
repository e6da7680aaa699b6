// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme)
// compliant serialization for deterministic hashing of pipeline artifacts.
// Every hash and signature in the reference-data pipeline is computed over
// the canonical form produced here, never over ad hoc json.Marshal output.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"golang.org/x/text/unicode/norm"
)

// JCS returns the RFC 8785 canonical JSON representation of v.
//
// Key properties:
// 1. Map keys are sorted lexicographically by UTF-8 bytes, recursively.
// 2. HTML escaping is disabled (unlike standard json.Marshal).
// 3. Numbers follow the ES6 serialization rules required by the RFC.
func JCS(v interface{}) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jcs: pre-marshal failed: %w", err)
	}

	canonical, err := jcs.Transform(intermediate)
	if err != nil {
		return nil, fmt.Errorf("jcs: transform failed: %w", err)
	}
	return canonical, nil
}

// CanonicalHash returns the SHA-256 hex digest of the canonical JSON
// representation of v.
func CanonicalHash(v interface{}) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes computes the SHA-256 hash of raw bytes and returns a hex string.
func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// JCSString returns the JCS canonical form as a string.
func JCSString(v interface{}) (string, error) {
	data, err := JCS(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// NFC returns s in Unicode Normalization Form C. Series identifiers and any
// free-text fields are NFC-normalized before hashing so that visually
// identical strings with different codepoint sequences cannot produce
// divergent digests.
func NFC(s string) string {
	return norm.NFC.String(s)
}

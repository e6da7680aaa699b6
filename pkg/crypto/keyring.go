package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Keyring derives date-scoped sealing keys from a long-lived root seed via
// HKDF-SHA256. One compromised daily key does not expose the root or any
// other day's key.
type Keyring struct {
	seed []byte
}

const kdfInfo = "refdata-manifest-sealing-v1"

// NewKeyring creates a keyring from a root seed. The seed must be at least
// ed25519.SeedSize bytes of entropy.
func NewKeyring(seed []byte) (*Keyring, error) {
	if len(seed) < ed25519.SeedSize {
		return nil, fmt.Errorf("keyring seed too short: %d bytes", len(seed))
	}
	return &Keyring{seed: seed}, nil
}

// SignerForDate deterministically derives the Ed25519 signer for a UTC
// calendar date (YYYY-MM-DD). The derivation is stable, so a verifier with
// the root seed can re-derive any day's public key.
func (k *Keyring) SignerForDate(date string) (*Ed25519Signer, error) {
	r := hkdf.New(sha256.New, k.seed, nil, []byte(kdfInfo+":"+date))
	derived := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, derived); err != nil {
		return nil, fmt.Errorf("HKDF derivation failed: %w", err)
	}

	priv := ed25519.NewKeyFromSeed(derived)
	return NewEd25519SignerFromKey(priv, "seal-"+date), nil
}

package manifest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianpay/refdata/pkg/crypto"
)

func sealOne(t *testing.T, signer crypto.Signer) (string, string) {
	t.Helper()
	mirrorDir := t.TempDir()
	manifestDir := t.TempDir()
	writeLines(t, mirrorDir, "EXR.jsonl",
		validLine("EXR", someHash(1), "2023-01-01T00:00:00Z"),
		validLine("EXR", someHash(2), "2023-01-01T06:00:00Z"),
	)

	opts := []Option{}
	if signer != nil {
		opts = append(opts, WithSigner(signer))
	}
	g := NewGenerator(opts...)
	m, err := g.Generate(context.Background(), mirrorDir, "2023-01-01", manifestDir)
	require.NoError(t, err)
	return m.Path, m.ManifestHash
}

func TestVerify_Unsigned(t *testing.T) {
	path, hash := sealOne(t, nil)

	res, err := Verify(path, "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Entries)
	assert.Equal(t, hash, res.ManifestHash)
	assert.Nil(t, res.SignatureValid)
}

func TestVerify_Signed(t *testing.T) {
	signer, err := crypto.NewEd25519Signer("seal")
	require.NoError(t, err)
	path, _ := sealOne(t, signer)

	res, err := Verify(path, signer.PublicKey())
	require.NoError(t, err)
	require.NotNil(t, res.SignatureValid)
	assert.True(t, *res.SignatureValid)
}

func TestVerify_RejectsTamperedHashRecord(t *testing.T) {
	signer, err := crypto.NewEd25519Signer("seal")
	require.NoError(t, err)
	path, _ := sealOne(t, signer)

	sigPath := filepath.Join(filepath.Dir(path), "manifest-2023-01-01.sig.json")
	data, err := os.ReadFile(sigPath)
	require.NoError(t, err)

	var rec SignatureRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	rec.ManifestHash = strings.Repeat("0", 64)
	updated, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, os.Chmod(sigPath, 0600))
	require.NoError(t, os.WriteFile(sigPath, updated, 0600))

	_, err = Verify(path, signer.PublicKey())
	assert.ErrorContains(t, err, "does not match recomputed hash")
}

func TestVerify_WrongKey(t *testing.T) {
	signer, err := crypto.NewEd25519Signer("seal")
	require.NoError(t, err)
	path, _ := sealOne(t, signer)

	other, err := crypto.NewEd25519Signer("other")
	require.NoError(t, err)

	res, err := Verify(path, other.PublicKey())
	require.NoError(t, err)
	require.NotNil(t, res.SignatureValid)
	assert.False(t, *res.SignatureValid)
}

func TestVerify_RejectsFutureSchema(t *testing.T) {
	signer, err := crypto.NewEd25519Signer("seal")
	require.NoError(t, err)
	path, _ := sealOne(t, signer)

	sigPath := filepath.Join(filepath.Dir(path), "manifest-2023-01-01.sig.json")
	data, err := os.ReadFile(sigPath)
	require.NoError(t, err)

	var rec SignatureRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	rec.SchemaVersion = "2.0.0"
	updated, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, os.Chmod(sigPath, 0600))
	require.NoError(t, os.WriteFile(sigPath, updated, 0600))

	_, err = Verify(path, signer.PublicKey())
	assert.ErrorContains(t, err, "unsupported manifest schema version")
}

package wallet

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testKeystore returns a file-backed Keystore isolated to a temp directory.
// Using the FileBackend avoids OS keychain prompts in CI.
func testKeystore(t *testing.T) *Keystore {
	t.Helper()
	ks, err := NewFileKeystore(t.TempDir(), keyring.FixedStringPrompt("testpass"))
	require.NoError(t, err)
	return ks
}

// ---------------------------------------------------------------------------
// normaliseHexKey
// ---------------------------------------------------------------------------

func TestNormaliseHexKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"0xabc123", "abc123"},
		{"0Xabc123", "abc123"},
		{"abc123", "abc123"},
		{"  0xabc  ", "abc"},
		{"0x", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normaliseHexKey(tt.in), "input %q", tt.in)
	}
}

// ---------------------------------------------------------------------------
// Keystore
// ---------------------------------------------------------------------------

func TestKeystoreFileBackendRoundTrip(t *testing.T) {
	t.Setenv(envKey, "")
	ks := testKeystore(t)

	ref, err := ks.Store("buyer", "0x"+testPrivKeyHex)
	require.NoError(t, err)
	assert.Equal(t, "w3sale.buyer", ref)

	got, err := ks.Retrieve(ref)
	require.NoError(t, err)
	assert.Equal(t, testPrivKeyHex, got)

	require.NoError(t, ks.Delete(ref))
	_, err = ks.Retrieve(ref)
	assert.Error(t, err)
	assert.NoError(t, ks.Delete(ref), "deleting a missing key is not an error")
}

func TestKeystoreRetrieveEnvVarOverride(t *testing.T) {
	t.Setenv(envKey, "0x"+testPrivKeyHex)

	ks := &Keystore{ring: nil}
	got, err := ks.Retrieve("w3sale.any-ref")
	require.NoError(t, err)
	assert.Equal(t, testPrivKeyHex, got)
}

func TestKeystoreNilRing(t *testing.T) {
	t.Setenv(envKey, "")
	ks := &Keystore{ring: nil}

	_, err := ks.Retrieve("w3sale.ghost")
	assert.ErrorIs(t, err, ErrKeystoreUnavailable)
	_, err = ks.Store("ghost", testPrivKeyHex)
	assert.ErrorIs(t, err, ErrKeystoreUnavailable)
	assert.NoError(t, ks.Delete("w3sale.ghost"))
}

// ---------------------------------------------------------------------------
// InMemoryKeystore
// ---------------------------------------------------------------------------

func TestInMemoryKeystore(t *testing.T) {
	iks := NewInMemoryKeystore()

	ref, err := iks.Store("k", "0xfirst")
	require.NoError(t, err)
	assert.Equal(t, "w3sale.k", ref)
	iks.Store("k", "second") //nolint:errcheck

	val, err := iks.Retrieve(ref)
	require.NoError(t, err)
	assert.Equal(t, "second", val, "second store should overwrite first")

	require.NoError(t, iks.Delete(ref))
	_, err = iks.Retrieve(ref)
	assert.Error(t, err)
}

package multikey

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEd25519PublicKeyRoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	encoded, err := EncodeEd25519PublicKey(pub)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "z6Mk"), "ed25519 multikey should carry the z6Mk prefix, got %s", encoded)

	decoded, err := DecodeEd25519PublicKey(encoded)
	require.NoError(t, err)
	assert.Equal(t, pub, decoded)
}

func TestDecodeEd25519PublicKeyRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{name: "empty", encoded: ""},
		{name: "not multibase", encoded: "!!!"},
		{name: "wrong encoding", encoded: "uAAAA"},
		{name: "wrong codec", encoded: mustEncodeSecp(t)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEd25519PublicKey(tt.encoded)
			assert.Error(t, err)
		})
	}
}

func TestSecp256k1PublicKeyRoundTrip(t *testing.T) {
	compressed := make([]byte, 33)
	compressed[0] = 0x02

	encoded, err := EncodeSecp256k1PublicKey(compressed)
	require.NoError(t, err)

	decoded, err := DecodeSecp256k1PublicKey(encoded)
	require.NoError(t, err)
	assert.Equal(t, compressed, decoded)

	_, err = EncodeSecp256k1PublicKey([]byte{0x02})
	assert.Error(t, err)
}

func TestSignatureRoundTrip(t *testing.T) {
	sig := make([]byte, ed25519.SignatureSize)
	for i := range sig {
		sig[i] = byte(i)
	}

	encoded, err := EncodeSignature(sig)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "z"))

	decoded, err := DecodeSignature(encoded)
	require.NoError(t, err)
	assert.Equal(t, sig, decoded)

	_, err = EncodeSignature(nil)
	assert.Error(t, err)
}

func mustEncodeSecp(t *testing.T) string {
	t.Helper()

	compressed := make([]byte, 33)
	compressed[0] = 0x03
	encoded, err := EncodeSecp256k1PublicKey(compressed)
	require.NoError(t, err)
	return encoded
}

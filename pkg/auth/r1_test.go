package auth

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/better-wallet/smart-account/pkg/types"
)

func TestR1PublicKeyRoundTrip(t *testing.T) {
	key, err := GenerateR1Key()
	require.NoError(t, err)

	pub, err := R1PublicKey(&key.PublicKey)
	require.NoError(t, err)

	parsed, err := ParseR1PublicKey(pub)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(&key.PublicKey))

	_, err = ParseR1PublicKey(types.R1PublicKey{})
	assert.Error(t, err)
}

func TestVerifyR1(t *testing.T) {
	key, err := GenerateR1Key()
	require.NoError(t, err)
	pub, err := R1PublicKey(&key.PublicKey)
	require.NoError(t, err)
	digest := sha256.Sum256([]byte("payload"))

	raw, err := SignR1(digest[:], key)
	require.NoError(t, err)
	require.Len(t, raw, R1SignatureLength)

	der, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	require.NoError(t, err)

	other, err := GenerateR1Key()
	require.NoError(t, err)
	otherPub, err := R1PublicKey(&other.PublicKey)
	require.NoError(t, err)

	tests := []struct {
		name   string
		digest []byte
		sig    []byte
		key    types.R1PublicKey
		want   bool
	}{
		{name: "raw r||s", digest: digest[:], sig: raw, key: pub, want: true},
		{name: "der", digest: digest[:], sig: der, key: pub, want: true},
		{name: "wrong key", digest: digest[:], sig: raw, key: otherPub, want: false},
		{name: "wrong digest", digest: make([]byte, 32), sig: raw, key: pub, want: false},
		{name: "truncated", digest: digest[:], sig: raw[:40], key: pub, want: false},
		{name: "zero signature", digest: digest[:], sig: make([]byte, 64), key: pub, want: false},
		{name: "off-curve key", digest: digest[:], sig: raw, key: types.R1PublicKey{1}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifyR1(tt.digest, tt.sig, tt.key))
		})
	}
}

func TestPasskey(t *testing.T) {
	key, err := GenerateR1Key()
	require.NoError(t, err)
	pub, err := R1PublicKey(&key.PublicKey)
	require.NoError(t, err)
	hash := crypto.Keccak256Hash([]byte("operation"))

	sig, err := SignPasskey(hash, key, "localhost", "http://localhost:5173")
	require.NoError(t, err)

	assert.True(t, VerifyPasskey(hash, sig, pub))
	assert.False(t, VerifyPasskey(crypto.Keccak256Hash([]byte("other")), sig, pub))

	decoded, err := DecodePasskeySignature(sig)
	require.NoError(t, err)
	assert.Contains(t, decoded.ClientDataJSON, "webauthn.get")

	t.Run("user presence required", func(t *testing.T) {
		decoded.AuthenticatorData[32] = 0
		tampered, err := EncodePasskeySignature(decoded)
		require.NoError(t, err)
		assert.False(t, VerifyPasskey(hash, tampered, pub))
	})

	t.Run("garbage", func(t *testing.T) {
		assert.False(t, VerifyPasskey(hash, []byte{1, 2, 3}, pub))
	})
}

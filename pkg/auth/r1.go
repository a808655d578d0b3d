package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"

	"github.com/better-wallet/smart-account/pkg/types"
)

// R1SignatureLength is the length of a raw r||s secp256r1 signature.
const R1SignatureLength = 64

var ErrMalformedDER = errors.New("malformed DER signature")

// GenerateR1Key generates a new secp256r1 private key.
func GenerateR1Key() (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate P-256 key: %w", err)
	}
	return key, nil
}

// R1PublicKey converts an ECDSA public key to its x||y form.
func R1PublicKey(pub *ecdsa.PublicKey) (types.R1PublicKey, error) {
	raw, err := pub.Bytes()
	if err != nil {
		return types.R1PublicKey{}, fmt.Errorf("failed to encode public key: %w", err)
	}
	// raw is 0x04||x||y
	return types.R1PublicKeyFromBytes(raw[1:])
}

// ParseR1PublicKey returns the ECDSA public key for x||y, checking it is on the curve.
func ParseR1PublicKey(key types.R1PublicKey) (*ecdsa.PublicKey, error) {
	uncompressed := make([]byte, 0, 1+types.R1PublicKeyLength)
	uncompressed = append(uncompressed, 0x04)
	uncompressed = append(uncompressed, key[:]...)

	pub, err := ecdsa.ParseUncompressedPublicKey(elliptic.P256(), uncompressed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return pub, nil
}

// SignR1 signs a 32-byte digest and returns the raw r||s signature.
func SignR1(digest []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	r, s, err := ecdsa.Sign(rand.Reader, key, digest)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	sig := make([]byte, R1SignatureLength)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])
	return sig, nil
}

// ParseR1Signature splits a raw r||s or DER-encoded signature into its scalars.
func ParseR1Signature(sig []byte) (*big.Int, *big.Int, error) {
	if len(sig) == R1SignatureLength {
		return new(big.Int).SetBytes(sig[:32]), new(big.Int).SetBytes(sig[32:]), nil
	}

	var (
		r, s  = new(big.Int), new(big.Int)
		inner cryptobyte.String
	)
	input := cryptobyte.String(sig)
	if !input.ReadASN1(&inner, asn1.SEQUENCE) ||
		!input.Empty() ||
		!inner.ReadASN1Integer(r) ||
		!inner.ReadASN1Integer(s) ||
		!inner.Empty() {
		return nil, nil, ErrMalformedDER
	}
	return r, s, nil
}

// VerifyR1 verifies sig over digest against an x||y public key. It fails
// closed: malformed signatures or off-curve keys return false.
func VerifyR1(digest []byte, sig []byte, key types.R1PublicKey) bool {
	pub, err := ParseR1PublicKey(key)
	if err != nil {
		return false
	}
	r, s, err := ParseR1Signature(sig)
	if err != nil {
		return false
	}
	if r.Sign() <= 0 || s.Sign() <= 0 {
		return false
	}
	return ecdsa.Verify(pub, digest, r, s)
}

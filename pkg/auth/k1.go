package auth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// K1SignatureLength is the length of an r||s||v secp256k1 signature.
const K1SignatureLength = 65

// Secp256k1HalfN is half of the secp256k1 curve order. Signatures with a
// larger s value are malleable and rejected.
var Secp256k1HalfN = uint256.MustFromHex("0x7FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF5D576E7357A4501DDFE92F46681B20A0")

var (
	ErrInvalidSignatureLength = errors.New("invalid signature length")
	ErrMalleableSignature     = errors.New("signature s value is above secp256k1n/2")
	ErrInvalidRecoveryID      = errors.New("invalid signature recovery id")
)

// SignK1 signs a 32-byte hash and returns r||s||v with v in {27, 28}.
func SignK1(hash common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign hash: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// RecoverK1 recovers the signer address of a 65-byte signature over hash.
// v may be encoded as 0/1 or 27/28. High-s signatures are rejected.
func RecoverK1(hash common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != K1SignatureLength {
		return common.Address{}, fmt.Errorf("%w: expected %d, got %d", ErrInvalidSignatureLength, K1SignatureLength, len(sig))
	}

	s := new(uint256.Int).SetBytes(sig[32:64])
	if s.IsZero() || s.Gt(Secp256k1HalfN) {
		return common.Address{}, ErrMalleableSignature
	}

	normalized := make([]byte, K1SignatureLength)
	copy(normalized, sig)
	switch v := normalized[64]; v {
	case 0, 1:
	case 27, 28:
		normalized[64] = v - 27
	default:
		return common.Address{}, fmt.Errorf("%w: %d", ErrInvalidRecoveryID, v)
	}

	pub, err := crypto.SigToPub(hash.Bytes(), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyK1 reports whether sig over hash was produced by signer.
func VerifyK1(hash common.Hash, sig []byte, signer common.Address) bool {
	recovered, err := RecoverK1(hash, sig)
	if err != nil {
		return false
	}
	return recovered == signer
}

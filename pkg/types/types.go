package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// HookKind selects one of the two ordered hook lists of an account.
type HookKind uint8

const (
	HookExecution HookKind = iota
	HookValidation
)

// HookKindFromBool maps the isValidation flag used on the wire.
func HookKindFromBool(isValidation bool) HookKind {
	if isValidation {
		return HookValidation
	}
	return HookExecution
}

// IsValidation reports whether k is the validation list.
func (k HookKind) IsValidation() bool {
	return k == HookValidation
}

func (k HookKind) String() string {
	if k == HookValidation {
		return "validation"
	}
	return "execution"
}

// R1PublicKeyLength is the width of an uncompressed secp256r1 key without the 0x04 prefix.
const R1PublicKeyLength = 64

// R1PublicKey is a secp256r1 public key encoded as x||y.
type R1PublicKey [R1PublicKeyLength]byte

// R1PublicKeyFromBytes validates the length of b and copies it into a key.
func R1PublicKeyFromBytes(b []byte) (R1PublicKey, error) {
	var k R1PublicKey
	if len(b) != R1PublicKeyLength {
		return k, fmt.Errorf("invalid r1 public key length: expected %d, got %d", R1PublicKeyLength, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// Bytes returns a copy of the key bytes.
func (k R1PublicKey) Bytes() []byte {
	out := make([]byte, R1PublicKeyLength)
	copy(out, k[:])
	return out
}

// Hex returns the 0x-prefixed hex encoding.
func (k R1PublicKey) Hex() string {
	return "0x" + hex.EncodeToString(k[:])
}

func (k R1PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.Hex()), nil
}

func (k *R1PublicKey) UnmarshalText(input []byte) error {
	raw, err := hex.DecodeString(strings.TrimPrefix(string(input), "0x"))
	if err != nil {
		return fmt.Errorf("invalid r1 public key hex: %w", err)
	}
	parsed, err := R1PublicKeyFromBytes(raw)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Call is one entry of a batch call.
type Call struct {
	Target       common.Address `json:"target"`
	AllowFailure bool           `json:"allowFailure"`
	Value        *uint256.Int   `json:"value"`
	CallData     hexutil.Bytes  `json:"callData"`
}

// Transaction is the call an operation asks the account to perform.
type Transaction struct {
	To    common.Address `json:"to"`
	Value *uint256.Int   `json:"value"`
	Data  hexutil.Bytes  `json:"data"`
	Nonce uint64         `json:"nonce"`
}

// Operation is the envelope every signed account operation travels in.
type Operation struct {
	Account     common.Address  `json:"account"`
	Transaction Transaction     `json:"transaction"`
	Validator   common.Address  `json:"validator"`
	Signature   hexutil.Bytes   `json:"signature"`
	HookData    []hexutil.Bytes `json:"hookData"`
}

// AccountView is a read-only snapshot of an account record.
type AccountView struct {
	Address         common.Address   `json:"address"`
	Implementation  common.Address   `json:"implementation"`
	Balance         *uint256.Int     `json:"balance"`
	Nonce           uint64           `json:"nonce"`
	K1Owners        []common.Address `json:"k1Owners"`
	R1Owners        []R1PublicKey    `json:"r1Owners"`
	K1Validators    []common.Address `json:"k1Validators"`
	R1Validators    []common.Address `json:"r1Validators"`
	Modules         []common.Address `json:"modules"`
	ValidationHooks []common.Address `json:"validationHooks"`
	ExecutionHooks  []common.Address `json:"executionHooks"`
}

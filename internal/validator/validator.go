// Package validator contains the signature validator contracts accounts
// register in their k1 and r1 validator sets.
package validator

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/better-wallet/smart-account/internal/ledger"
	"github.com/better-wallet/smart-account/pkg/auth"
	apperrors "github.com/better-wallet/smart-account/pkg/errors"
	"github.com/better-wallet/smart-account/pkg/types"
)

const (
	k1ABIJSON = `[{"type":"function","name":"validateSignature","stateMutability":"view",
		"inputs":[{"name":"signedHash","type":"bytes32"},{"name":"signature","type":"bytes"}],
		"outputs":[{"name":"signer","type":"address"}]}]`
	r1ABIJSON = `[{"type":"function","name":"validateSignature","stateMutability":"view",
		"inputs":[{"name":"signedHash","type":"bytes32"},{"name":"signature","type":"bytes"},{"name":"pubKey","type":"bytes32[2]"}],
		"outputs":[{"name":"valid","type":"bool"}]}]`
)

var (
	K1ABI = mustParse(k1ABIJSON)
	R1ABI = mustParse(r1ABIJSON)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid validator abi: %v", err))
	}
	return parsed
}

// EOAValidator validates secp256k1 signatures by address recovery.
type EOAValidator struct{}

// NewEOAValidator creates a k1 validator.
func NewEOAValidator() *EOAValidator {
	return &EOAValidator{}
}

// RecoverSigner returns the signer of hash. Malformed or malleable
// signatures yield false.
func (v *EOAValidator) RecoverSigner(hash common.Hash, signature []byte) (common.Address, bool) {
	signer, err := auth.RecoverK1(hash, signature)
	if err != nil {
		return common.Address{}, false
	}
	return signer, true
}

func (v *EOAValidator) Call(_ context.Context, _ *ledger.State, msg *ledger.Message) ([]byte, error) {
	args, err := unpack(K1ABI, msg.Data)
	if err != nil || args == nil {
		return nil, err
	}
	signer, _ := v.RecoverSigner(common.Hash(args[0].([32]byte)), args[1].([]byte))
	return K1ABI.Methods["validateSignature"].Outputs.Pack(signer)
}

// TEEValidator validates secp256r1 signatures produced by a hardware
// enclave key. Both raw r||s and DER encodings are accepted.
type TEEValidator struct{}

// NewTEEValidator creates an r1 validator for enclave keys.
func NewTEEValidator() *TEEValidator {
	return &TEEValidator{}
}

func (v *TEEValidator) VerifySignature(hash common.Hash, signature []byte, key types.R1PublicKey) bool {
	return auth.VerifyR1(hash.Bytes(), signature, key)
}

func (v *TEEValidator) Call(_ context.Context, _ *ledger.State, msg *ledger.Message) ([]byte, error) {
	return callR1(v, msg)
}

// PasskeyValidator validates WebAuthn assertions whose challenge is the
// operation hash.
type PasskeyValidator struct{}

// NewPasskeyValidator creates an r1 validator for passkeys.
func NewPasskeyValidator() *PasskeyValidator {
	return &PasskeyValidator{}
}

func (v *PasskeyValidator) VerifySignature(hash common.Hash, signature []byte, key types.R1PublicKey) bool {
	return auth.VerifyPasskey(hash, signature, key)
}

func (v *PasskeyValidator) Call(_ context.Context, _ *ledger.State, msg *ledger.Message) ([]byte, error) {
	return callR1(v, msg)
}

type r1Verifier interface {
	VerifySignature(hash common.Hash, signature []byte, key types.R1PublicKey) bool
}

func callR1(v r1Verifier, msg *ledger.Message) ([]byte, error) {
	args, err := unpack(R1ABI, msg.Data)
	if err != nil || args == nil {
		return nil, err
	}
	pub := args[2].([2][32]byte)
	var key types.R1PublicKey
	copy(key[:32], pub[0][:])
	copy(key[32:], pub[1][:])
	valid := v.VerifySignature(common.Hash(args[0].([32]byte)), args[1].([]byte), key)
	return R1ABI.Methods["validateSignature"].Outputs.Pack(valid)
}

// unpack decodes a validateSignature call. Empty data is a plain transfer
// and yields nil args.
func unpack(contract abi.ABI, data []byte) ([]interface{}, error) {
	if len(data) == 0 {
		return nil, nil
	}
	method := contract.Methods["validateSignature"]
	if len(data) < 4 || string(data[:4]) != string(method.ID) {
		return nil, apperrors.InvalidInput(apperrors.ReasonUnknownMethod, "validator only exposes validateSignature")
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, apperrors.InvalidInput(apperrors.ReasonInvalidLength, err.Error())
	}
	return args, nil
}

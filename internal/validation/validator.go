// Package validation checks API input before it reaches the account service.
package validation

import (
	"fmt"
	"regexp"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/better-wallet/smart-account/pkg/errors"
	"github.com/better-wallet/smart-account/pkg/types"
)

// MaxCallDataSize bounds the calldata of a single call.
const MaxCallDataSize = 128 * 1024

// MaxGuardianApprovals bounds the approvals of one social recovery request.
const MaxGuardianApprovals = 64

// K1SignatureLength is the length of an r||s||v signature.
const K1SignatureLength = 65

// EthereumAddressPattern is the regex pattern for Ethereum addresses
var EthereumAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ParseAddress parses a 0x-prefixed hex address.
func ParseAddress(address string) (common.Address, error) {
	if address == "" {
		return common.Address{}, apperrors.InvalidInput(apperrors.ReasonZeroAddress, "address cannot be empty")
	}
	if !EthereumAddressPattern.MatchString(address) {
		return common.Address{}, apperrors.InvalidInput(apperrors.ReasonInvalidLength,
			"invalid address format: must be 0x followed by 40 hex characters")
	}
	return common.HexToAddress(address), nil
}

// ValidateOwner checks that owner is a K1 address or an R1 public key.
func ValidateOwner(owner []byte) error {
	switch len(owner) {
	case common.AddressLength:
		if common.BytesToAddress(owner) == (common.Address{}) {
			return apperrors.InvalidInput(apperrors.ReasonZeroAddress, "owner cannot be the zero address")
		}
		return nil
	case types.R1PublicKeyLength:
		return nil
	}
	return apperrors.InvalidInput(apperrors.ReasonInvalidLength,
		fmt.Sprintf("owner must be %d or %d bytes, got %d", common.AddressLength, types.R1PublicKeyLength, len(owner)))
}

// ValidateCallData rejects calldata above maxDataSize bytes (0 = no limit).
func ValidateCallData(data []byte, maxDataSize int) error {
	if maxDataSize > 0 && len(data) > maxDataSize {
		return apperrors.InvalidInput(apperrors.ReasonInvalidLength,
			fmt.Sprintf("call data too large: %d bytes > %d bytes max", len(data), maxDataSize))
	}
	return nil
}

// ValidateTransaction checks the transaction of an operation envelope.
func ValidateTransaction(tx types.Transaction) error {
	if err := ValidateCallData(tx.Data, MaxCallDataSize); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	return nil
}

// ValidateOperation checks a signed operation before it is submitted.
func ValidateOperation(op *types.Operation) error {
	if op.Validator == (common.Address{}) {
		return apperrors.InvalidInput(apperrors.ReasonZeroAddress, "validator is required")
	}
	if len(op.Signature) == 0 {
		return apperrors.InvalidInput(apperrors.ReasonInvalidLength, "signature is required")
	}
	return ValidateTransaction(op.Transaction)
}

// ValidateDeploy checks the owner and initial call of a new account.
func ValidateDeploy(owner common.Address, initialCall types.Call) error {
	if owner == (common.Address{}) {
		return apperrors.InvalidInput(apperrors.ReasonZeroAddress, "owner is required")
	}
	if err := ValidateCallData(initialCall.CallData, MaxCallDataSize); err != nil {
		return fmt.Errorf("invalid initial call: %w", err)
	}
	return nil
}

// ValidateRecoveryData checks a recovery request payload.
func ValidateRecoveryData(data types.RecoveryData) error {
	if data.RecoveringAddress == (common.Address{}) {
		return apperrors.InvalidInput(apperrors.ReasonZeroAddress, "recoveringAddress is required")
	}
	if err := ValidateOwner(data.NewOwner); err != nil {
		return fmt.Errorf("invalid newOwner: %w", err)
	}
	return nil
}

// ValidateGuardianApprovals checks the shape of social recovery approvals.
// Whether they reach the threshold is decided by the module.
func ValidateGuardianApprovals(approvals []types.GuardianData) error {
	if len(approvals) == 0 {
		return apperrors.InvalidInput(apperrors.ReasonInvalidLength, "at least one guardian approval is required")
	}
	if len(approvals) > MaxGuardianApprovals {
		return apperrors.InvalidInput(apperrors.ReasonInvalidLength,
			fmt.Sprintf("too many guardian approvals: %d > %d", len(approvals), MaxGuardianApprovals))
	}
	for i, a := range approvals {
		if a.Guardian == (common.Address{}) {
			return apperrors.InvalidInput(apperrors.ReasonZeroAddress, fmt.Sprintf("guardian %d is the zero address", i))
		}
		if len(a.Signature) != K1SignatureLength {
			return apperrors.InvalidInput(apperrors.ReasonInvalidLength,
				fmt.Sprintf("guardian %d signature must be %d bytes", i, K1SignatureLength))
		}
	}
	return nil
}

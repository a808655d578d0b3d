package auth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/better-wallet/smart-account/pkg/types"
)

// CountGuardianApprovals returns the distinct guardians among approvals whose
// K1 signature over hash is valid. Approvals from addresses outside guardians,
// repeated guardians and bad signatures are not counted.
func CountGuardianApprovals(hash common.Hash, approvals []types.GuardianData, guardians []common.Address) []common.Address {
	allowed := make(map[common.Address]bool, len(guardians))
	for _, g := range guardians {
		allowed[g] = true
	}

	usedKeys := make(map[common.Address]bool)
	valid := make([]common.Address, 0, len(approvals))
	for _, approval := range approvals {
		if !allowed[approval.Guardian] || usedKeys[approval.Guardian] {
			continue
		}
		if !VerifyK1(hash, approval.Signature, approval.Guardian) {
			continue
		}
		usedKeys[approval.Guardian] = true
		valid = append(valid, approval.Guardian)
	}
	return valid
}

// VerifyGuardianQuorum checks that at least threshold distinct guardians approved hash.
func VerifyGuardianQuorum(hash common.Hash, approvals []types.GuardianData, guardians []common.Address, threshold uint64) ([]common.Address, error) {
	if threshold == 0 {
		return nil, fmt.Errorf("invalid threshold: %d", threshold)
	}

	valid := CountGuardianApprovals(hash, approvals, guardians)
	if uint64(len(valid)) < threshold {
		return valid, fmt.Errorf(
			"insufficient signatures: got %d valid signatures, need %d (threshold)",
			len(valid),
			threshold,
		)
	}
	return valid, nil
}

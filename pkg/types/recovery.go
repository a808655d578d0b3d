package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// RecoveryData is the payload guardians sign to start a recovery.
type RecoveryData struct {
	RecoveringAddress common.Address `json:"recoveringAddress"`
	NewOwner          hexutil.Bytes  `json:"newOwner"`
	Nonce             uint64         `json:"nonce"`
}

// GuardianData is one social guardian approval.
type GuardianData struct {
	Guardian  common.Address `json:"guardian"`
	Signature hexutil.Bytes  `json:"signature"`
}

// SocialRecoveryConfig is the per-account guardian configuration of the social module.
type SocialRecoveryConfig struct {
	Threshold uint64           `json:"threshold"`
	Timelock  time.Duration    `json:"timelock"`
	Guardians []common.Address `json:"guardians"`
}

// RecoveryStatus describes the recovery state of one account.
type RecoveryStatus struct {
	Account    common.Address   `json:"account"`
	Inited     bool             `json:"inited"`
	Recovering bool             `json:"recovering"`
	Nonce      uint64           `json:"nonce"`
	NewOwner   hexutil.Bytes    `json:"newOwner,omitempty"`
	StartedAt  *time.Time       `json:"startedAt,omitempty"`
	ReadyAt    *time.Time       `json:"readyAt,omitempty"`
	Approvals  []common.Address `json:"approvals,omitempty"`
}

package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Receipt kinds
const (
	ReceiptKindDeploy          = "account.deploy"
	ReceiptKindOperation       = "account.operation"
	ReceiptKindRecoveryStart   = "recovery.start"
	ReceiptKindRecoveryExecute = "recovery.execute"
)

// Receipt records the outcome of one state-changing call.
type Receipt struct {
	ID        uuid.UUID      `json:"id"`
	Account   common.Address `json:"account"`
	Kind      string         `json:"kind"`
	Hash      common.Hash    `json:"hash"`
	Success   bool           `json:"success"`
	ErrorCode string         `json:"errorCode,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Digest    string         `json:"digest"`
	CreatedAt time.Time      `json:"createdAt"`
}

package account

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/better-wallet/smart-account/internal/ledger"
	"github.com/better-wallet/smart-account/pkg/types"
)

// Initable is implemented by modules and hooks. Init runs when the account
// registers the contract; Disable runs on removal and may fail without
// blocking it.
type Initable interface {
	ledger.Contract
	Init(ctx context.Context, st *ledger.State, account common.Address, initData []byte) error
	Disable(ctx context.Context, st *ledger.State, account common.Address) error
}

// Module may execute calls on behalf of the accounts that list it.
type Module interface {
	Initable
	IsModule() bool
}

// ValidationHook runs before signature verification of every operation.
type ValidationHook interface {
	Initable
	ValidationHook(ctx context.Context, st *ledger.State, account common.Address, hash common.Hash, tx types.Transaction, hookData []byte) error
}

// ExecutionHook wraps every execution of the account. The bytes returned
// by PreExecution are handed back to PostExecution.
type ExecutionHook interface {
	Initable
	PreExecution(ctx context.Context, st *ledger.State, account common.Address, tx types.Transaction) ([]byte, error)
	PostExecution(ctx context.Context, st *ledger.State, account common.Address, hookContext []byte) error
}

// K1Validator recovers the secp256k1 signer of a hash.
type K1Validator interface {
	ledger.Contract
	RecoverSigner(hash common.Hash, signature []byte) (common.Address, bool)
}

// R1Validator checks a secp256r1 signature against one owner key.
type R1Validator interface {
	ledger.Contract
	VerifySignature(hash common.Hash, signature []byte, key types.R1PublicKey) bool
}

// Implementation is account logic executed in the storage context of an
// account proxy.
type Implementation interface {
	ledger.Contract
	Delegate(ctx context.Context, st *ledger.State, self common.Address, msg *ledger.Message) ([]byte, error)
	HandleOperation(ctx context.Context, st *ledger.State, op *types.Operation) ([]byte, error)
}

func probe[T any](st *ledger.State, addr common.Address) (T, bool) {
	var zero T
	code, ok := st.Code(addr)
	if !ok {
		return zero, false
	}
	c, ok := code.(T)
	return c, ok
}

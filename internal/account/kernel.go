package account

import (
	"context"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/better-wallet/smart-account/internal/ledger"
	"github.com/better-wallet/smart-account/internal/logger"
	"github.com/better-wallet/smart-account/pkg/auth"
	apperrors "github.com/better-wallet/smart-account/pkg/errors"
	"github.com/better-wallet/smart-account/pkg/types"
)

// Kernel is the account implementation. One Kernel is deployed at an
// implementation address and shared by every proxy pointing at it; all
// account state lives in the proxy's storage.
type Kernel struct {
	address common.Address
}

// NewKernel creates a kernel that will be deployed at addr.
func NewKernel(addr common.Address) *Kernel {
	return &Kernel{address: addr}
}

// Address returns the implementation address.
func (k *Kernel) Address() common.Address {
	return k.address
}

// Call rejects direct calls: the kernel only runs behind a proxy.
func (k *Kernel) Call(_ context.Context, _ *ledger.State, msg *ledger.Message) ([]byte, error) {
	if len(msg.Data) == 0 {
		return nil, nil
	}
	return nil, apperrors.InvalidInput(apperrors.ReasonNoCode, "implementation cannot be called directly")
}

// HandleOperation validates op and executes its transaction from the account.
func (k *Kernel) HandleOperation(ctx context.Context, st *ledger.State, op *types.Operation) ([]byte, error) {
	self := op.Account
	ctx = logger.WithAccount(ctx, self.Hex())

	rec, err := loadRecord(st, self)
	if err != nil {
		return nil, err
	}
	if !rec.Initialized {
		return nil, apperrors.StateConflict(apperrors.ReasonNotInitialized, self.Hex())
	}
	if op.Transaction.Nonce != rec.Nonce {
		return nil, apperrors.ReplayRejected(apperrors.ReasonInvalidNonce,
			fmt.Sprintf("expected nonce %d, got %d", rec.Nonce, op.Transaction.Nonce))
	}
	rec.Nonce++
	if err := storeRecord(st, self, rec); err != nil {
		return nil, err
	}

	hash, err := auth.OperationHash(st.ChainID(), self, op.Transaction)
	if err != nil {
		return nil, err
	}

	if err := k.runValidationHooks(ctx, st, self, rec, hash, op); err != nil {
		return nil, err
	}
	// hooks may have changed the record
	if rec, err = loadRecord(st, self); err != nil {
		return nil, err
	}
	if err := k.validateSignature(st, rec, hash, op); err != nil {
		return nil, err
	}

	logger.Debug(ctx, "operation validated", "nonce", op.Transaction.Nonce, "validator", op.Validator.Hex())

	tx := op.Transaction
	return k.withExecutionHooks(ctx, st, self, tx, func() ([]byte, error) {
		return st.Call(ctx, &ledger.Message{From: self, To: tx.To, Value: tx.Value, Data: tx.Data})
	})
}

func (k *Kernel) runValidationHooks(ctx context.Context, st *ledger.State, self common.Address, rec *record, hash common.Hash, op *types.Operation) error {
	if len(op.HookData) != len(rec.ValidationHooks) {
		return apperrors.InvalidInput(apperrors.ReasonInvalidHookData,
			fmt.Sprintf("expected %d hook data entries, got %d", len(rec.ValidationHooks), len(op.HookData)))
	}

	for i, addr := range rec.ValidationHooks {
		hook, ok := probe[ValidationHook](st, addr)
		if !ok {
			return apperrors.InvalidInput(apperrors.ReasonNoInterface, addr.Hex())
		}
		if err := hook.ValidationHook(ctx, st, self, hash, op.Transaction, op.HookData[i]); err != nil {
			logger.Info(ctx, "validation hook rejected operation", "hook", addr.Hex(), "error", err)
			return apperrors.Unauthorized(apperrors.ReasonValidationHookFailed, fmt.Sprintf("%s: %v", addr.Hex(), err))
		}
	}
	return nil
}

func (k *Kernel) validateSignature(st *ledger.State, rec *record, hash common.Hash, op *types.Operation) error {
	switch {
	case slices.Contains(rec.K1Validators, op.Validator):
		v, ok := probe[K1Validator](st, op.Validator)
		if !ok {
			return apperrors.InvalidSignature("validator has no k1 interface")
		}
		signer, ok := v.RecoverSigner(hash, op.Signature)
		if !ok || !slices.Contains(rec.K1Owners, signer) {
			return apperrors.InvalidSignature("k1 signer is not an owner")
		}
		return nil

	case slices.Contains(rec.R1Validators, op.Validator):
		v, ok := probe[R1Validator](st, op.Validator)
		if !ok {
			return apperrors.InvalidSignature("validator has no r1 interface")
		}
		for _, key := range rec.R1Owners {
			if v.VerifySignature(hash, op.Signature, key) {
				return nil
			}
		}
		return apperrors.InvalidSignature("no r1 owner matches signature")

	default:
		return apperrors.InvalidSignature(fmt.Sprintf("validator %s is not registered", op.Validator.Hex()))
	}
}

// Proxy is the code deployed at every account address. It forwards each
// call to the implementation recorded in the account's EIP-1967 slot.
type Proxy struct{}

func (Proxy) Call(ctx context.Context, st *ledger.State, msg *ledger.Message) ([]byte, error) {
	impl, err := resolve(st, msg.To)
	if err != nil {
		return nil, err
	}
	return impl.Delegate(ctx, st, msg.To, msg)
}

// DeployProxy installs a proxy for account pointing at implementation.
func DeployProxy(st *ledger.State, account, implementation common.Address) error {
	if _, ok := probe[Implementation](st, implementation); !ok {
		return apperrors.InvalidInput(apperrors.ReasonNoInterface, "implementation "+implementation.Hex())
	}
	st.Deploy(account, Proxy{})
	st.SetState(account, ImplementationSlot, implementation.Bytes())
	return nil
}

// HandleOperation routes op to the implementation of its account.
func HandleOperation(ctx context.Context, st *ledger.State, op *types.Operation) ([]byte, error) {
	impl, err := resolve(st, op.Account)
	if err != nil {
		return nil, err
	}
	return impl.HandleOperation(ctx, st, op)
}

func resolve(st *ledger.State, account common.Address) (Implementation, error) {
	if _, ok := probe[Proxy](st, account); !ok {
		return nil, apperrors.NotFound(apperrors.ReasonNoCode, "no account at "+account.Hex())
	}
	impl, ok := probe[Implementation](st, ImplementationOf(st, account))
	if !ok {
		return nil, apperrors.Internal("account implementation missing for " + account.Hex())
	}
	return impl, nil
}

package account

import (
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/better-wallet/smart-account/internal/ledger"
	"github.com/better-wallet/smart-account/pkg/types"
)

var (
	// ImplementationSlot is the EIP-1967 implementation slot:
	// keccak256("eip1967.proxy.implementation") - 1.
	ImplementationSlot = common.HexToHash("0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc")

	recordSlot = crypto.Keccak256Hash([]byte("SmartAccount.record"))

	// ContextKey is reserved for execution hook contexts; hooks cannot write it.
	ContextKey = crypto.Keccak256Hash([]byte("HookManager.context"))
)

// record is the per-account state owned by the kernel.
type record struct {
	Initialized     bool
	Nonce           uint64
	K1Owners        []common.Address
	R1Owners        []types.R1PublicKey
	K1Validators    []common.Address
	R1Validators    []common.Address
	Modules         []common.Address
	ValidationHooks []common.Address
	ExecutionHooks  []common.Address
}

func loadRecord(st *ledger.State, account common.Address) (*record, error) {
	rec := new(record)
	raw := st.GetState(account, recordSlot)
	if len(raw) == 0 {
		return rec, nil
	}
	if err := rlp.DecodeBytes(raw, rec); err != nil {
		return nil, fmt.Errorf("failed to decode account record: %w", err)
	}
	return rec, nil
}

func storeRecord(st *ledger.State, account common.Address, rec *record) error {
	raw, err := rlp.EncodeToBytes(rec)
	if err != nil {
		return fmt.Errorf("failed to encode account record: %w", err)
	}
	st.SetState(account, recordSlot, raw)
	return nil
}

func (r *record) hasOwners() bool {
	return len(r.K1Owners) > 0 || len(r.R1Owners) > 0
}

func (r *record) isModule(addr common.Address) bool {
	return slices.Contains(r.Modules, addr)
}

func (r *record) isHook(addr common.Address) bool {
	return slices.Contains(r.ValidationHooks, addr) || slices.Contains(r.ExecutionHooks, addr)
}

func (r *record) hooks(kind types.HookKind) *[]common.Address {
	if kind.IsValidation() {
		return &r.ValidationHooks
	}
	return &r.ExecutionHooks
}

// hookDataSlot addresses the private slot of hook under key.
func hookDataSlot(hook common.Address, key common.Hash) common.Hash {
	return crypto.Keccak256Hash(hook.Bytes(), key.Bytes())
}

// ImplementationOf returns the implementation address stored for account.
func ImplementationOf(st *ledger.State, account common.Address) common.Address {
	return common.BytesToAddress(st.GetState(account, ImplementationSlot))
}

func remove[T comparable](list []T, item T) ([]T, bool) {
	i := slices.Index(list, item)
	if i < 0 {
		return list, false
	}
	return slices.Delete(slices.Clone(list), i, i+1), true
}

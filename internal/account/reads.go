package account

import (
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/better-wallet/smart-account/internal/ledger"
	apperrors "github.com/better-wallet/smart-account/pkg/errors"
	"github.com/better-wallet/smart-account/pkg/types"
)

// Snapshot is a read-only copy of one account's kernel state.
type Snapshot struct {
	Address        common.Address
	Implementation common.Address
	rec            *record
}

// Load reads the state of account. It fails with NotFound when no account
// proxy is deployed there.
func Load(st *ledger.State, account common.Address) (*Snapshot, error) {
	if _, ok := probe[Proxy](st, account); !ok {
		return nil, apperrors.NotFound(apperrors.ReasonNoCode, "no account at "+account.Hex())
	}
	rec, err := loadRecord(st, account)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Address: account, Implementation: ImplementationOf(st, account), rec: rec}, nil
}

func (s *Snapshot) Initialized() bool { return s.rec.Initialized }

// Nonce is the nonce the next operation must carry.
func (s *Snapshot) Nonce() uint64 { return s.rec.Nonce }

func (s *Snapshot) K1ListOwners() []common.Address { return list(s.rec.K1Owners) }

func (s *Snapshot) R1ListOwners() []types.R1PublicKey { return list(s.rec.R1Owners) }

func (s *Snapshot) K1IsOwner(addr common.Address) bool {
	return slices.Contains(s.rec.K1Owners, addr)
}

func (s *Snapshot) R1IsOwner(key types.R1PublicKey) bool {
	return slices.Contains(s.rec.R1Owners, key)
}

func (s *Snapshot) K1ListValidators() []common.Address { return list(s.rec.K1Validators) }

func (s *Snapshot) R1ListValidators() []common.Address { return list(s.rec.R1Validators) }

func (s *Snapshot) K1IsValidator(addr common.Address) bool {
	return slices.Contains(s.rec.K1Validators, addr)
}

func (s *Snapshot) R1IsValidator(addr common.Address) bool {
	return slices.Contains(s.rec.R1Validators, addr)
}

func (s *Snapshot) ListModules() []common.Address { return list(s.rec.Modules) }

func (s *Snapshot) IsModule(addr common.Address) bool { return s.rec.isModule(addr) }

// ListHooks returns the hooks of kind in execution order.
func (s *Snapshot) ListHooks(kind types.HookKind) []common.Address {
	return list(*s.rec.hooks(kind))
}

func (s *Snapshot) IsHook(addr common.Address) bool { return s.rec.isHook(addr) }

// View converts the snapshot into its wire form.
func (s *Snapshot) View(st *ledger.State) types.AccountView {
	return types.AccountView{
		Address:         s.Address,
		Implementation:  s.Implementation,
		Balance:         st.Balance(s.Address),
		Nonce:           s.rec.Nonce,
		K1Owners:        s.K1ListOwners(),
		R1Owners:        s.R1ListOwners(),
		K1Validators:    s.K1ListValidators(),
		R1Validators:    s.R1ListValidators(),
		Modules:         s.ListModules(),
		ValidationHooks: s.ListHooks(types.HookValidation),
		ExecutionHooks:  s.ListHooks(types.HookExecution),
	}
}

// GetHookData returns the value hook stored under key for account.
func GetHookData(st *ledger.State, account, hook common.Address, key common.Hash) []byte {
	return st.GetState(account, hookDataSlot(hook, key))
}

func list[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}

package account

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/better-wallet/smart-account/internal/ledger"
	"github.com/better-wallet/smart-account/internal/logger"
	apperrors "github.com/better-wallet/smart-account/pkg/errors"
	"github.com/better-wallet/smart-account/pkg/types"
)

func (k *Kernel) addModule(ctx context.Context, st *ledger.State, c *call) ([]byte, error) {
	rec, err := authorized(st, c)
	if err != nil {
		return nil, err
	}
	return nil, installModule(ctx, st, c.self, rec, argBytes(c, 0))
}

// installModule registers the module named by the first 20 bytes of
// moduleAndData and hands the rest to its Init.
func installModule(ctx context.Context, st *ledger.State, self common.Address, rec *record, moduleAndData []byte) error {
	if len(moduleAndData) < common.AddressLength {
		return apperrors.InvalidInput(apperrors.ReasonInvalidLength, "moduleAndData shorter than an address")
	}
	addr := common.BytesToAddress(moduleAndData[:common.AddressLength])
	initData := moduleAndData[common.AddressLength:]

	module, ok := probe[Module](st, addr)
	if !ok || !module.IsModule() {
		return apperrors.InvalidInput(apperrors.ReasonNoInterface, "module "+addr.Hex())
	}
	if rec.isModule(addr) {
		return apperrors.StateConflict(apperrors.ReasonAlreadyExists, "module "+addr.Hex())
	}

	rec.Modules = append(rec.Modules, addr)
	if err := storeRecord(st, self, rec); err != nil {
		return err
	}
	if err := module.Init(ctx, st, self, initData); err != nil {
		return err
	}
	logger.Info(ctx, "module added", "module", addr.Hex())
	return nil
}

func (k *Kernel) removeModule(ctx context.Context, st *ledger.State, c *call) ([]byte, error) {
	rec, err := authorized(st, c)
	if err != nil {
		return nil, err
	}
	addr := argAddress(c, 0)
	var ok bool
	if rec.Modules, ok = remove(rec.Modules, addr); !ok {
		return nil, apperrors.NotFound(apperrors.ReasonNotExists, "module "+addr.Hex())
	}
	if err := storeRecord(st, c.self, rec); err != nil {
		return nil, err
	}

	if module, ok := probe[Module](st, addr); ok {
		disable(ctx, st, c.self, module, addr)
	}
	logger.Info(ctx, "module removed", "module", addr.Hex())
	return nil, nil
}

// disable calls Disable without letting its failure block removal.
func disable(ctx context.Context, st *ledger.State, self common.Address, c Initable, addr common.Address) {
	snap := st.Snapshot()
	if err := c.Disable(ctx, st, self); err != nil {
		st.RevertToSnapshot(snap)
		logger.Warn(ctx, "disable failed, removal continues", "contract", addr.Hex(), "error", err)
	}
}

// executeFromModule performs a call requested by a module. It skips
// validation but runs the execution hooks.
func (k *Kernel) executeFromModule(ctx context.Context, st *ledger.State, c *call) ([]byte, error) {
	rec, err := loadRecord(st, c.self)
	if err != nil {
		return nil, err
	}
	if !rec.isModule(c.msg.From) {
		return nil, apperrors.Unauthorized(apperrors.ReasonNotFromModule, c.msg.From.Hex())
	}

	to := argAddress(c, 0)
	if to == c.self {
		return nil, apperrors.InvalidInput(apperrors.ReasonRecursiveModuleCall, "module cannot call the account itself")
	}
	value, overflow := uint256.FromBig(argBig(c, 1))
	if overflow {
		return nil, apperrors.InvalidInput(apperrors.ReasonInvalidLength, "value overflows uint256")
	}
	data := argBytes(c, 2)

	tx := types.Transaction{To: to, Value: value, Data: data, Nonce: rec.Nonce}
	logger.Debug(ctx, "executing from module", "module", c.msg.From.Hex(), "to", to.Hex())
	return k.withExecutionHooks(ctx, st, c.self, tx, func() ([]byte, error) {
		return st.Call(ctx, &ledger.Message{From: c.self, To: to, Value: value, Data: data})
	})
}

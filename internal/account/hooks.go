package account

import (
	"context"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/better-wallet/smart-account/internal/ledger"
	"github.com/better-wallet/smart-account/internal/logger"
	apperrors "github.com/better-wallet/smart-account/pkg/errors"
	"github.com/better-wallet/smart-account/pkg/types"
)

func (k *Kernel) addHook(ctx context.Context, st *ledger.State, c *call) ([]byte, error) {
	rec, err := authorized(st, c)
	if err != nil {
		return nil, err
	}

	hookAndData := argBytes(c, 0)
	kind := types.HookKindFromBool(argBool(c, 1))
	if len(hookAndData) < common.AddressLength {
		return nil, apperrors.InvalidInput(apperrors.ReasonInvalidLength, "hookAndData shorter than an address")
	}
	addr := common.BytesToAddress(hookAndData[:common.AddressLength])
	initData := hookAndData[common.AddressLength:]

	hook, ok := probeHook(st, addr, kind)
	if !ok {
		return nil, apperrors.InvalidInput(apperrors.ReasonNoInterface, kind.String()+" hook "+addr.Hex())
	}
	if rec.isHook(addr) {
		return nil, apperrors.StateConflict(apperrors.ReasonAlreadyExists, "hook "+addr.Hex())
	}

	list := rec.hooks(kind)
	*list = append(*list, addr)
	if err := storeRecord(st, c.self, rec); err != nil {
		return nil, err
	}
	if err := hook.Init(ctx, st, c.self, initData); err != nil {
		return nil, err
	}
	logger.Info(ctx, "hook added", "hook", addr.Hex(), "kind", kind.String())
	return nil, nil
}

func (k *Kernel) removeHook(ctx context.Context, st *ledger.State, c *call) ([]byte, error) {
	rec, err := authorized(st, c)
	if err != nil {
		return nil, err
	}

	addr := argAddress(c, 0)
	kind := types.HookKindFromBool(argBool(c, 1))
	list := rec.hooks(kind)
	updated, ok := remove(*list, addr)
	if !ok {
		return nil, apperrors.NotFound(apperrors.ReasonNotExists, kind.String()+" hook "+addr.Hex())
	}
	*list = updated
	if err := storeRecord(st, c.self, rec); err != nil {
		return nil, err
	}
	if hook, ok := probeHook(st, addr, kind); ok {
		disable(ctx, st, c.self, hook, addr)
	}
	logger.Info(ctx, "hook removed", "hook", addr.Hex(), "kind", kind.String())
	return nil, nil
}

// setHookData lets a registered hook write its own slot.
func (k *Kernel) setHookData(ctx context.Context, st *ledger.State, c *call) ([]byte, error) {
	rec, err := loadRecord(st, c.self)
	if err != nil {
		return nil, err
	}
	hook := c.msg.From
	if !rec.isHook(hook) {
		return nil, apperrors.Unauthorized(apperrors.ReasonNotFromHook, hook.Hex())
	}
	key := argHash(c, 0)
	if key == ContextKey {
		return nil, apperrors.InvalidInput(apperrors.ReasonInvalidKey, key.Hex())
	}
	st.SetState(c.self, hookDataSlot(hook, key), argBytes(c, 1))
	logger.Debug(ctx, "hook data set", "hook", hook.Hex(), "key", key.Hex())
	return nil, nil
}

func probeHook(st *ledger.State, addr common.Address, kind types.HookKind) (Initable, bool) {
	if kind.IsValidation() {
		return probe[ValidationHook](st, addr)
	}
	return probe[ExecutionHook](st, addr)
}

// withExecutionHooks runs fn between the pre and post phases of every
// execution hook. Each pre phase context is handed to the post phase of
// the same invocation, so nested executions keep their own contexts.
// Hooks removed by fn get no post phase. Any failure reverts fn's effects.
func (k *Kernel) withExecutionHooks(ctx context.Context, st *ledger.State, self common.Address, tx types.Transaction, fn func() ([]byte, error)) ([]byte, error) {
	rec, err := loadRecord(st, self)
	if err != nil {
		return nil, err
	}
	hooks := slices.Clone(rec.ExecutionHooks)
	contexts := make([][]byte, len(hooks))
	snap := st.Snapshot()

	for i, addr := range hooks {
		hook, ok := probe[ExecutionHook](st, addr)
		if !ok {
			st.RevertToSnapshot(snap)
			return nil, apperrors.InvalidInput(apperrors.ReasonNoInterface, "execution hook "+addr.Hex())
		}
		hookContext, err := hook.PreExecution(ctx, st, self, tx)
		if err != nil {
			st.RevertToSnapshot(snap)
			return nil, executionHookFailed(addr, err)
		}
		contexts[i] = hookContext
	}

	out, err := fn()
	if err != nil {
		st.RevertToSnapshot(snap)
		return nil, err
	}

	if rec, err = loadRecord(st, self); err != nil {
		st.RevertToSnapshot(snap)
		return nil, err
	}
	for i, addr := range hooks {
		if !slices.Contains(rec.ExecutionHooks, addr) {
			continue
		}
		hook, ok := probe[ExecutionHook](st, addr)
		if !ok {
			continue
		}
		if err := hook.PostExecution(ctx, st, self, contexts[i]); err != nil {
			st.RevertToSnapshot(snap)
			return nil, executionHookFailed(addr, err)
		}
	}
	return out, nil
}

func executionHookFailed(hook common.Address, err error) error {
	return apperrors.Unauthorized(apperrors.ReasonExecutionHookFailed, hook.Hex()+": "+err.Error())
}

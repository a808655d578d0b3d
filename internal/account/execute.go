package account

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/better-wallet/smart-account/internal/ledger"
	"github.com/better-wallet/smart-account/internal/logger"
	apperrors "github.com/better-wallet/smart-account/pkg/errors"
	"github.com/better-wallet/smart-account/pkg/types"
)

// initialize wires the first owner, the first k1 validator, the initial
// modules and runs the optional initial call. It can only run once.
func (k *Kernel) initialize(ctx context.Context, st *ledger.State, c *call) ([]byte, error) {
	rec, err := loadRecord(st, c.self)
	if err != nil {
		return nil, err
	}
	if rec.Initialized {
		return nil, apperrors.StateConflict(apperrors.ReasonAlreadyInitialized, c.self.Hex())
	}

	owner := argAddress(c, 0)
	validator := argAddress(c, 1)
	modules := c.args[2].([][]byte)
	initialCall, err := decodeCall(c.args[3])
	if err != nil {
		return nil, err
	}

	if err := addK1Owner(rec, owner); err != nil {
		return nil, err
	}
	if err := addK1Validator(st, rec, validator); err != nil {
		return nil, err
	}
	rec.Initialized = true
	if err := storeRecord(st, c.self, rec); err != nil {
		return nil, err
	}

	for _, moduleAndData := range modules {
		if rec, err = loadRecord(st, c.self); err != nil {
			return nil, err
		}
		if err := installModule(ctx, st, c.self, rec, moduleAndData); err != nil {
			return nil, err
		}
	}

	if initialCall.Target != (common.Address{}) {
		if err := runCall(ctx, st, c.self, initialCall); err != nil {
			return nil, err
		}
	}

	logger.Info(ctx, "account initialized", "account", c.self.Hex(), "owner", owner.Hex(), "validator", validator.Hex())
	return nil, nil
}

// batchCall executes calls in order. A failing entry with AllowFailure set
// is skipped; any other failure reverts the whole batch. The account itself
// and its modules may batch; a module batch runs inside the execution hooks.
func (k *Kernel) batchCall(ctx context.Context, st *ledger.State, c *call) ([]byte, error) {
	rec, err := authorized(st, c)
	if err != nil {
		return nil, err
	}

	tuples := *abi.ConvertType(c.args[0], new([]callTuple)).(*[]callTuple)
	calls := make([]types.Call, len(tuples))
	for i, t := range tuples {
		if calls[i], err = t.call(); err != nil {
			return nil, apperrors.InvalidInput(apperrors.ReasonInvalidLength, err.Error())
		}
	}

	run := func() ([]byte, error) {
		for i, call := range calls {
			if err := runCall(ctx, st, c.self, call); err != nil {
				return nil, fmt.Errorf("batch entry %d: %w", i, err)
			}
		}
		return nil, nil
	}

	if c.msg.From == c.self {
		return run()
	}
	data, err := EncodeBatchCall(calls)
	if err != nil {
		return nil, apperrors.Internal(err.Error())
	}
	return k.withExecutionHooks(ctx, st, c.self, types.Transaction{To: c.self, Data: data, Nonce: rec.Nonce}, run)
}

// runCall performs one call from the account, honoring AllowFailure.
func runCall(ctx context.Context, st *ledger.State, self common.Address, call types.Call) error {
	value := call.Value
	if value == nil {
		value = new(uint256.Int)
	}
	_, err := st.Call(ctx, &ledger.Message{From: self, To: call.Target, Value: value, Data: call.CallData})
	if err == nil {
		return nil
	}
	if call.AllowFailure {
		logger.Debug(ctx, "call failed, failure allowed", "target", call.Target.Hex(), "error", err)
		return nil
	}
	return err
}

func decodeCall(arg interface{}) (types.Call, error) {
	t := *abi.ConvertType(arg, new(callTuple)).(*callTuple)
	call, err := t.call()
	if err != nil {
		return types.Call{}, apperrors.InvalidInput(apperrors.ReasonInvalidLength, err.Error())
	}
	return call, nil
}

// upgradeTo points the account at a new implementation.
func (k *Kernel) upgradeTo(ctx context.Context, st *ledger.State, c *call) ([]byte, error) {
	if err := onlySelf(c); err != nil {
		return nil, err
	}
	next := argAddress(c, 0)
	current := ImplementationOf(st, c.self)
	if next == current {
		return nil, apperrors.StateConflict(apperrors.ReasonSameImplementation, next.Hex())
	}
	if _, ok := probe[Implementation](st, next); !ok {
		return nil, apperrors.InvalidInput(apperrors.ReasonNoInterface, "implementation "+next.Hex())
	}
	st.SetState(c.self, ImplementationSlot, next.Bytes())
	logger.Info(ctx, "account upgraded", "from", current.Hex(), "to", next.Hex())
	return nil, nil
}

// Package mocks provides mock contracts for testing accounts.
package mocks

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/better-wallet/smart-account/internal/account"
	"github.com/better-wallet/smart-account/internal/ledger"
	"github.com/better-wallet/smart-account/pkg/types"
)

var (
	initedSlot   = crypto.Keccak256Hash([]byte("mocks.inited"))
	initDataSlot = crypto.Keccak256Hash([]byte("mocks.initData"))

	boolArgs = func() abi.Arguments {
		t, _ := abi.NewType("bool", "", nil)
		return abi.Arguments{{Type: t}}
	}()

	ErrHookFailed = errors.New("mock hook failed")
)

// EncodeShouldFail builds the hook data MockValidationHook understands.
func EncodeShouldFail(fail bool) []byte {
	data, _ := boolArgs.Pack(fail)
	return data
}

// base holds the per-account init bookkeeping shared by every mock.
type base struct {
	Address common.Address
}

func (b *base) Call(_ context.Context, _ *ledger.State, msg *ledger.Message) ([]byte, error) {
	if len(msg.Data) > 0 {
		return nil, fmt.Errorf("mock %s has no methods", b.Address.Hex())
	}
	return nil, nil
}

func (b *base) slot(account common.Address, key common.Hash) common.Hash {
	return crypto.Keccak256Hash(account.Bytes(), key.Bytes())
}

func (b *base) Init(_ context.Context, st *ledger.State, acct common.Address, initData []byte) error {
	st.SetState(b.Address, b.slot(acct, initedSlot), []byte{1})
	st.SetState(b.Address, b.slot(acct, initDataSlot), initData)
	return nil
}

func (b *base) Disable(_ context.Context, st *ledger.State, acct common.Address) error {
	st.SetState(b.Address, b.slot(acct, initedSlot), nil)
	st.SetState(b.Address, b.slot(acct, initDataSlot), nil)
	return nil
}

// IsInited reports whether acct initialized this mock.
func (b *base) IsInited(st *ledger.State, acct common.Address) bool {
	return len(st.GetState(b.Address, b.slot(acct, initedSlot))) > 0
}

// InitData returns the init data acct passed in.
func (b *base) InitData(st *ledger.State, acct common.Address) []byte {
	return st.GetState(b.Address, b.slot(acct, initDataSlot))
}

// SetHookData calls account.setHookData from the mock's address.
func (b *base) SetHookData(ctx context.Context, st *ledger.State, acct common.Address, key common.Hash, data []byte) error {
	input, err := account.ABI.Pack("setHookData", [32]byte(key), data)
	if err != nil {
		return err
	}
	_, err = st.Invoke(ctx, b.Address, acct, input)
	return err
}

// MockValidationHook fails validation when its hook data decodes to true.
type MockValidationHook struct {
	base
	Calls atomic.Int64
}

func NewMockValidationHook(addr common.Address) *MockValidationHook {
	return &MockValidationHook{base: base{Address: addr}}
}

func (h *MockValidationHook) ValidationHook(_ context.Context, _ *ledger.State, _ common.Address, _ common.Hash, _ types.Transaction, hookData []byte) error {
	h.Calls.Add(1)
	if len(hookData) == 0 {
		return nil
	}
	values, err := boolArgs.Unpack(hookData)
	if err != nil {
		return fmt.Errorf("decode hook data: %w", err)
	}
	if values[0].(bool) {
		return ErrHookFailed
	}
	return nil
}

// MockExecutionHook records its invocations and fails on request.
type MockExecutionHook struct {
	base
	FailPre   bool
	FailPost  bool
	PreCalls  atomic.Int64
	PostCalls atomic.Int64
	// LastData is the call data of the last transaction seen by PreExecution.
	LastData []byte
}

func NewMockExecutionHook(addr common.Address) *MockExecutionHook {
	return &MockExecutionHook{base: base{Address: addr}}
}

func (h *MockExecutionHook) PreExecution(_ context.Context, _ *ledger.State, _ common.Address, tx types.Transaction) ([]byte, error) {
	h.PreCalls.Add(1)
	h.LastData = tx.Data
	if h.FailPre {
		return nil, ErrHookFailed
	}
	return tx.To.Bytes(), nil
}

func (h *MockExecutionHook) PostExecution(_ context.Context, _ *ledger.State, _ common.Address, hookContext []byte) error {
	h.PostCalls.Add(1)
	if len(hookContext) != common.AddressLength {
		return fmt.Errorf("unexpected hook context %x", hookContext)
	}
	if h.FailPost {
		return ErrHookFailed
	}
	return nil
}

// MockModule is a module that can execute calls on the accounts that
// added it.
type MockModule struct {
	base
	FailDisable bool
}

func NewMockModule(addr common.Address) *MockModule {
	return &MockModule{base: base{Address: addr}}
}

func (m *MockModule) IsModule() bool { return true }

func (m *MockModule) Disable(ctx context.Context, st *ledger.State, acct common.Address) error {
	if err := m.base.Disable(ctx, st, acct); err != nil {
		return err
	}
	if m.FailDisable {
		return errors.New("mock module refuses to disable")
	}
	return nil
}

// Execute asks acct to perform a call through executeFromModule.
func (m *MockModule) Execute(ctx context.Context, st *ledger.State, acct, to common.Address, value *big.Int, data []byte) error {
	if value == nil {
		value = new(big.Int)
	}
	if data == nil {
		data = []byte{}
	}
	input, err := account.ABI.Pack("executeFromModule", to, value, data)
	if err != nil {
		return err
	}
	_, err = st.Invoke(ctx, m.Address, acct, input)
	return err
}

// CallAccount sends raw call data to acct from the module.
func (m *MockModule) CallAccount(ctx context.Context, st *ledger.State, acct common.Address, input []byte) error {
	_, err := st.Invoke(ctx, m.Address, acct, input)
	return err
}

// Reverter is a contract whose every call fails.
type Reverter struct{}

func (Reverter) Call(context.Context, *ledger.State, *ledger.Message) ([]byte, error) {
	return nil, errors.New("reverted")
}

// Counter is a contract that counts the calls it receives per caller.
type Counter struct {
	Address common.Address
}

func (c *Counter) Call(_ context.Context, st *ledger.State, msg *ledger.Message) ([]byte, error) {
	key := common.BytesToHash(msg.From.Bytes())
	n := new(big.Int).SetBytes(st.GetState(c.Address, key))
	n.Add(n, big.NewInt(1))
	st.SetState(c.Address, key, n.Bytes())
	return nil, nil
}

// Count returns how many calls from caller the counter saw.
func (c *Counter) Count(st *ledger.State, caller common.Address) uint64 {
	return new(big.Int).SetBytes(st.GetState(c.Address, common.BytesToHash(caller.Bytes()))).Uint64()
}

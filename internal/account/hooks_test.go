package account_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/better-wallet/smart-account/internal/account"
	"github.com/better-wallet/smart-account/internal/ledger"
	apperrors "github.com/better-wallet/smart-account/pkg/errors"
	"github.com/better-wallet/smart-account/pkg/types"
	"github.com/better-wallet/smart-account/tests/mocks"
)

var (
	validationHookAddr = common.HexToAddress("0x6001")
	executionHookAddr  = common.HexToAddress("0x6002")
	pass               = mocks.EncodeShouldFail(false)
	fail               = mocks.EncodeShouldFail(true)
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func withHooks(t *testing.T) (*env, *mocks.MockValidationHook, *mocks.MockExecutionHook) {
	t.Helper()
	e := newEnv(t)
	vh := mocks.NewMockValidationHook(validationHookAddr)
	xh := mocks.NewMockExecutionHook(executionHookAddr)
	e.deploy(validationHookAddr, vh)
	e.deploy(executionHookAddr, xh)
	return e, vh, xh
}

func TestHookRoundTrip(t *testing.T) {
	e, _, _ := withHooks(t)

	for _, kind := range []types.HookKind{types.HookValidation, types.HookExecution} {
		t.Run(kind.String(), func(t *testing.T) {
			addr := executionHookAddr
			if kind.IsValidation() {
				addr = validationHookAddr
			}
			before := e.snapshot().ListHooks(kind)
			assert.False(t, e.snapshot().IsHook(addr))

			require.NoError(t, e.self(nil, "addHook", addr.Bytes(), kind.IsValidation()))
			assert.True(t, e.snapshot().IsHook(addr))
			assert.Equal(t, []common.Address{addr}, e.snapshot().ListHooks(kind))

			var hookData [][]byte
			if kind.IsValidation() {
				hookData = [][]byte{pass}
			}
			require.NoError(t, e.self(hookData, "removeHook", addr, kind.IsValidation()))
			assert.Equal(t, before, e.snapshot().ListHooks(kind))
			assert.False(t, e.snapshot().IsHook(addr))
		})
	}
}

func TestAddHook_Rejects(t *testing.T) {
	e, _, _ := withHooks(t)
	require.NoError(t, e.self(nil, "addHook", executionHookAddr.Bytes(), false))

	tests := []struct {
		name         string
		input        []byte
		isValidation bool
		reason       string
	}{
		{name: "short payload", input: validationHookAddr.Bytes()[:4], isValidation: true, reason: apperrors.ReasonInvalidLength},
		{name: "no code", input: strangerAddr.Bytes(), isValidation: true, reason: apperrors.ReasonNoInterface},
		{name: "wrong kind", input: validationHookAddr.Bytes(), isValidation: false, reason: apperrors.ReasonNoInterface},
		{name: "already a hook", input: executionHookAddr.Bytes(), isValidation: false, reason: apperrors.ReasonAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.self(nil, "addHook", tt.input, tt.isValidation)
			assert.True(t, apperrors.HasReason(err, tt.reason), "got %v", err)
		})
	}

	err := e.direct(strangerAddr, "addHook", validationHookAddr.Bytes(), true)
	assert.True(t, apperrors.HasReason(err, apperrors.ReasonNotFromSelfOrModule))
	err = e.direct(strangerAddr, "removeHook", executionHookAddr, false)
	assert.True(t, apperrors.HasReason(err, apperrors.ReasonNotFromSelfOrModule))
	err = e.self(nil, "removeHook", validationHookAddr, true)
	assert.True(t, apperrors.HasReason(err, apperrors.ReasonNotExists))
}

func TestValidationHookFailureLeavesNoTrace(t *testing.T) {
	e, vh, xh := withHooks(t)
	require.NoError(t, e.self(nil, "addHook", validationHookAddr.Bytes(), true))
	require.NoError(t, e.self([][]byte{pass}, "addHook", executionHookAddr.Bytes(), false))

	nonce := e.snapshot().Nonce()
	pre := xh.PreCalls.Load()

	err := e.transfer(1, fail)
	assert.True(t, apperrors.HasReason(err, apperrors.ReasonValidationHookFailed))
	assert.Equal(t, uint64(1000), e.balance(accountAddr))
	assert.Equal(t, uint64(0), e.balance(recipientAddr))
	assert.Equal(t, nonce, e.snapshot().Nonce())
	assert.Equal(t, pre, xh.PreCalls.Load())
	assert.Positive(t, vh.Calls.Load())

	err = e.transfer(1)
	assert.True(t, apperrors.HasReason(err, apperrors.ReasonInvalidHookData))

	require.NoError(t, e.transfer(1, pass))
	assert.Equal(t, uint64(1), e.balance(recipientAddr))
	assert.Equal(t, pre+1, xh.PreCalls.Load())
	assert.Equal(t, xh.PreCalls.Load(), xh.PostCalls.Load())
}

func TestExecutionHookFailures(t *testing.T) {
	e, _, xh := withHooks(t)
	require.NoError(t, e.self(nil, "addHook", executionHookAddr.Bytes(), false))

	xh.FailPost = true
	err := e.transfer(1)
	assert.True(t, apperrors.HasReason(err, apperrors.ReasonExecutionHookFailed))
	assert.Equal(t, uint64(1000), e.balance(accountAddr))
	assert.Equal(t, uint64(0), e.balance(recipientAddr))

	xh.FailPost = false
	xh.FailPre = true
	post := xh.PostCalls.Load()
	err = e.transfer(1)
	assert.True(t, apperrors.HasReason(err, apperrors.ReasonExecutionHookFailed))
	assert.Equal(t, post, xh.PostCalls.Load())

	xh.FailPre = false
	require.NoError(t, e.transfer(1))
	assert.Equal(t, uint64(1), e.balance(recipientAddr))

	// hook contexts never reach account storage
	e.ledger.View(func(st *ledger.State) {
		assert.Empty(t, account.GetHookData(st, accountAddr, executionHookAddr, account.ContextKey))
	})
}

func TestHookData(t *testing.T) {
	e, vh, _ := withHooks(t)
	require.NoError(t, e.self(nil, "addHook", validationHookAddr.Bytes(), true))

	key := crypto.Keccak256Hash([]byte("some key"))
	require.NoError(t, e.do(func(st *ledger.State) error {
		return vh.SetHookData(e.ctx, st, accountAddr, key, []byte{0xc1, 0xae})
	}))
	e.ledger.View(func(st *ledger.State) {
		assert.Equal(t, []byte{0xc1, 0xae}, account.GetHookData(st, accountAddr, validationHookAddr, key))
		// slots are scoped per hook
		assert.Empty(t, account.GetHookData(st, accountAddr, executionHookAddr, key))
	})

	err := e.direct(strangerAddr, "setHookData", [32]byte(key), []byte{1})
	assert.True(t, apperrors.HasReason(err, apperrors.ReasonNotFromHook))

	err = e.do(func(st *ledger.State) error {
		return vh.SetHookData(e.ctx, st, accountAddr, account.ContextKey, []byte{1})
	})
	assert.True(t, apperrors.HasReason(err, apperrors.ReasonInvalidKey))
}

// A failing validation hook blocks a transfer until it is removed.
func TestValidationHookEndToEnd(t *testing.T) {
	e, _, _ := withHooks(t)
	require.NoError(t, e.self(nil, "addHook", validationHookAddr.Bytes(), true))

	assert.Error(t, e.transfer(1, fail))
	assert.Equal(t, uint64(1000), e.balance(accountAddr))

	require.NoError(t, e.self([][]byte{pass}, "removeHook", validationHookAddr, true))

	require.NoError(t, e.transfer(1))
	assert.Equal(t, uint64(999), e.balance(accountAddr))
	assert.Equal(t, uint64(1), e.balance(recipientAddr))
}

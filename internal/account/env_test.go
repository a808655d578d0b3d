package account_test

import (
	"context"
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/better-wallet/smart-account/internal/account"
	"github.com/better-wallet/smart-account/internal/ledger"
	"github.com/better-wallet/smart-account/internal/validator"
	"github.com/better-wallet/smart-account/pkg/auth"
	"github.com/better-wallet/smart-account/pkg/types"
)

var (
	kernelAddr    = common.HexToAddress("0x00000000000000000000000000000000000a0001")
	kernelV2Addr  = common.HexToAddress("0x00000000000000000000000000000000000a0002")
	eoaAddr       = common.HexToAddress("0x00000000000000000000000000000000000b0001")
	teeAddr       = common.HexToAddress("0x00000000000000000000000000000000000b0002")
	accountAddr   = common.HexToAddress("0x00000000000000000000000000000000000c0001")
	deployerAddr  = common.HexToAddress("0x00000000000000000000000000000000000d0001")
	recipientAddr = common.HexToAddress("0x00000000000000000000000000000000000e0001")
	strangerAddr  = common.HexToAddress("0x00000000000000000000000000000000000f0001")
)

type env struct {
	t        *testing.T
	ctx      context.Context
	ledger   *ledger.Ledger
	ownerKey *ecdsa.PrivateKey
	owner    common.Address
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ownerKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	e := &env{
		t:        t,
		ctx:      context.Background(),
		ledger:   ledger.New(31337, nil),
		ownerKey: ownerKey,
		owner:    crypto.PubkeyToAddress(ownerKey.PublicKey),
	}

	err = e.ledger.Transact(e.ctx, func(st *ledger.State) error {
		st.Deploy(kernelAddr, account.NewKernel(kernelAddr))
		st.Deploy(kernelV2Addr, account.NewKernel(kernelV2Addr))
		st.Deploy(eoaAddr, validator.NewEOAValidator())
		st.Deploy(teeAddr, validator.NewTEEValidator())
		if err := account.DeployProxy(st, accountAddr, kernelAddr); err != nil {
			return err
		}
		init, err := account.EncodeInitializer(e.owner, eoaAddr, nil, types.Call{})
		if err != nil {
			return err
		}
		if _, err := st.Invoke(e.ctx, deployerAddr, accountAddr, init); err != nil {
			return err
		}
		st.Mint(accountAddr, uint256.NewInt(1000))
		return nil
	})
	require.NoError(t, err)
	return e
}

func (e *env) snapshot() *account.Snapshot {
	e.t.Helper()
	var (
		snap *account.Snapshot
		err  error
	)
	e.ledger.View(func(st *ledger.State) {
		snap, err = account.Load(st, accountAddr)
	})
	require.NoError(e.t, err)
	return snap
}

func (e *env) balance(addr common.Address) uint64 {
	return e.ledger.Balance(addr).Uint64()
}

func (e *env) transaction(to common.Address, value uint64, data []byte) types.Transaction {
	return types.Transaction{
		To:    to,
		Value: uint256.NewInt(value),
		Data:  data,
		Nonce: e.snapshot().Nonce(),
	}
}

// signK1 builds an operation signed by the k1 owner through the EOA validator.
func (e *env) signK1(tx types.Transaction, hookData ...[]byte) *types.Operation {
	e.t.Helper()
	hash, err := auth.OperationHash(31337, accountAddr, tx)
	require.NoError(e.t, err)
	sig, err := auth.SignK1(hash, e.ownerKey)
	require.NoError(e.t, err)
	return &types.Operation{
		Account:     accountAddr,
		Transaction: tx,
		Validator:   eoaAddr,
		Signature:   sig,
		HookData:    toHex(hookData),
	}
}

// signR1 builds an operation signed by key through the TEE validator.
func (e *env) signR1(tx types.Transaction, key *ecdsa.PrivateKey, hookData ...[]byte) *types.Operation {
	e.t.Helper()
	hash, err := auth.OperationHash(31337, accountAddr, tx)
	require.NoError(e.t, err)
	sig, err := auth.SignR1(hash.Bytes(), key)
	require.NoError(e.t, err)
	return &types.Operation{
		Account:     accountAddr,
		Transaction: tx,
		Validator:   teeAddr,
		Signature:   sig,
		HookData:    toHex(hookData),
	}
}

func (e *env) submit(op *types.Operation) error {
	return e.ledger.Transact(e.ctx, func(st *ledger.State) error {
		_, err := account.HandleOperation(e.ctx, st, op)
		return err
	})
}

// transfer sends value from the account to recipient.
func (e *env) transfer(value uint64, hookData ...[]byte) error {
	return e.submit(e.signK1(e.transaction(recipientAddr, value, nil), hookData...))
}

// self submits an owner-signed call of the account on itself.
func (e *env) self(hookData [][]byte, method string, args ...interface{}) error {
	e.t.Helper()
	data, err := account.ABI.Pack(method, args...)
	require.NoError(e.t, err)
	return e.submit(e.signK1(e.transaction(accountAddr, 0, data), hookData...))
}

// direct calls the account from caller outside any operation.
func (e *env) direct(caller common.Address, method string, args ...interface{}) error {
	e.t.Helper()
	data, err := account.ABI.Pack(method, args...)
	require.NoError(e.t, err)
	return e.ledger.Transact(e.ctx, func(st *ledger.State) error {
		_, err := st.Invoke(e.ctx, caller, accountAddr, data)
		return err
	})
}

func (e *env) deploy(addr common.Address, c ledger.Contract) {
	require.NoError(e.t, e.ledger.Transact(e.ctx, func(st *ledger.State) error {
		st.Deploy(addr, c)
		return nil
	}))
}

func (e *env) do(fn func(st *ledger.State) error) error {
	return e.ledger.Transact(e.ctx, fn)
}

func toHex(data [][]byte) []hexutil.Bytes {
	out := make([]hexutil.Bytes, len(data))
	for i, d := range data {
		out[i] = d
	}
	return out
}

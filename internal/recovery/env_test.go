package recovery_test

import (
	"context"
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/better-wallet/smart-account/internal/account"
	"github.com/better-wallet/smart-account/internal/ledger"
	"github.com/better-wallet/smart-account/internal/recovery"
	"github.com/better-wallet/smart-account/internal/validator"
	"github.com/better-wallet/smart-account/pkg/auth"
	"github.com/better-wallet/smart-account/pkg/types"
)

const (
	chainID       = 31337
	cloudTimelock = 24 * time.Hour
)

var (
	kernelAddr    = common.HexToAddress("0x00000000000000000000000000000000000a0001")
	eoaAddr       = common.HexToAddress("0x00000000000000000000000000000000000b0001")
	teeAddr       = common.HexToAddress("0x00000000000000000000000000000000000b0002")
	cloudAddr     = common.HexToAddress("0x0000000000000000000000000000000000100001")
	socialAddr    = common.HexToAddress("0x0000000000000000000000000000000000100002")
	accountAddr   = common.HexToAddress("0x00000000000000000000000000000000000c0001")
	deployerAddr  = common.HexToAddress("0x00000000000000000000000000000000000d0001")
	recipientAddr = common.HexToAddress("0x00000000000000000000000000000000000e0001")
	strangerAddr  = common.HexToAddress("0x00000000000000000000000000000000000f0001")
)

type env struct {
	t        *testing.T
	ctx      context.Context
	clock    *ledger.ManualClock
	ledger   *ledger.Ledger
	cloud    *recovery.CloudModule
	social   *recovery.SocialModule
	ownerKey *ecdsa.PrivateKey
	owner    common.Address
	guardian *ecdsa.PrivateKey
}

// newEnv deploys an account whose owner installed the cloud module with
// guardian as its guardian and registered the TEE validator.
func newEnv(t *testing.T) *env {
	t.Helper()
	ownerKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	guardian, err := crypto.GenerateKey()
	require.NoError(t, err)

	clock := ledger.NewManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	e := &env{
		t:        t,
		ctx:      context.Background(),
		clock:    clock,
		ledger:   ledger.New(chainID, clock),
		cloud:    recovery.NewCloudModule(cloudAddr, "CloudRecovery", "1", cloudTimelock),
		social:   recovery.NewSocialModule(socialAddr, "SocialRecovery", "1", time.Hour, 1),
		ownerKey: ownerKey,
		owner:    crypto.PubkeyToAddress(ownerKey.PublicKey),
		guardian: guardian,
	}

	cloudInit, err := recovery.EncodeCloudInit(crypto.PubkeyToAddress(guardian.PublicKey))
	require.NoError(t, err)

	err = e.ledger.Transact(e.ctx, func(st *ledger.State) error {
		st.Deploy(kernelAddr, account.NewKernel(kernelAddr))
		st.Deploy(eoaAddr, validator.NewEOAValidator())
		st.Deploy(teeAddr, validator.NewTEEValidator())
		st.Deploy(cloudAddr, e.cloud)
		st.Deploy(socialAddr, e.social)
		if err := account.DeployProxy(st, accountAddr, kernelAddr); err != nil {
			return err
		}
		modules := [][]byte{account.ModuleAndData(cloudAddr, cloudInit)}
		init, err := account.EncodeInitializer(e.owner, eoaAddr, modules, types.Call{})
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
	require.NoError(t, e.self("r1AddValidator", teeAddr))
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

func (e *env) view(fn func(st *ledger.State)) {
	e.ledger.View(fn)
}

func (e *env) operationHash(tx types.Transaction) common.Hash {
	e.t.Helper()
	hash, err := auth.OperationHash(chainID, accountAddr, tx)
	require.NoError(e.t, err)
	return hash
}

func (e *env) transaction(to common.Address, value uint64, data []byte) types.Transaction {
	return types.Transaction{To: to, Value: uint256.NewInt(value), Data: data, Nonce: e.snapshot().Nonce()}
}

func (e *env) submit(op *types.Operation) error {
	return e.ledger.Transact(e.ctx, func(st *ledger.State) error {
		_, err := account.HandleOperation(e.ctx, st, op)
		return err
	})
}

// ownerCall submits an operation signed by the k1 owner calling to with data.
func (e *env) ownerCall(to common.Address, data []byte) error {
	e.t.Helper()
	tx := e.transaction(to, 0, data)
	sig, err := auth.SignK1(e.operationHash(tx), e.ownerKey)
	require.NoError(e.t, err)
	return e.submit(&types.Operation{Account: accountAddr, Transaction: tx, Validator: eoaAddr, Signature: sig})
}

// self submits an owner-signed call of the account on itself.
func (e *env) self(method string, args ...interface{}) error {
	e.t.Helper()
	data, err := account.ABI.Pack(method, args...)
	require.NoError(e.t, err)
	return e.ownerCall(accountAddr, data)
}

// r1Transfer sends value to recipient with an operation signed by key via the TEE validator.
func (e *env) r1Transfer(key *ecdsa.PrivateKey, value uint64) error {
	e.t.Helper()
	tx := e.transaction(recipientAddr, value, nil)
	sig, err := auth.SignR1(e.operationHash(tx).Bytes(), key)
	require.NoError(e.t, err)
	return e.submit(&types.Operation{Account: accountAddr, Transaction: tx, Validator: teeAddr, Signature: sig})
}

// invoke calls target from caller outside any operation.
func (e *env) invoke(caller, target common.Address, data []byte) error {
	return e.ledger.Transact(e.ctx, func(st *ledger.State) error {
		_, err := st.Invoke(e.ctx, caller, target, data)
		return err
	})
}

func (e *env) recoveryData(newOwner []byte, nonce uint64) types.RecoveryData {
	return types.RecoveryData{RecoveringAddress: accountAddr, NewOwner: newOwner, Nonce: nonce}
}

// guardianSign signs data for module with key.
func (e *env) guardianSign(module interface {
	Eip712Hash(*ledger.State, types.RecoveryData) (common.Hash, error)
}, data types.RecoveryData, key *ecdsa.PrivateKey) []byte {
	e.t.Helper()
	var (
		hash common.Hash
		err  error
	)
	e.view(func(st *ledger.State) { hash, err = module.Eip712Hash(st, data) })
	require.NoError(e.t, err)
	sig, err := auth.SignK1(hash, key)
	require.NoError(e.t, err)
	return sig
}

func (e *env) startCloud(data types.RecoveryData, sig []byte) error {
	e.t.Helper()
	input, err := recovery.EncodeCloudStart(data, sig)
	require.NoError(e.t, err)
	return e.invoke(strangerAddr, cloudAddr, input)
}

func (e *env) execute(module common.Address, abiDef abi.ABI) error {
	e.t.Helper()
	input, err := abiDef.Pack("executeRecovery", accountAddr)
	require.NoError(e.t, err)
	return e.invoke(strangerAddr, module, input)
}

func newR1Owner(t *testing.T) (*ecdsa.PrivateKey, types.R1PublicKey) {
	t.Helper()
	priv, err := auth.GenerateR1Key()
	require.NoError(t, err)
	pub, err := auth.R1PublicKey(&priv.PublicKey)
	require.NoError(t, err)
	return priv, pub
}

package factory_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/better-wallet/smart-account/internal/account"
	"github.com/better-wallet/smart-account/internal/factory"
	"github.com/better-wallet/smart-account/internal/ledger"
	"github.com/better-wallet/smart-account/internal/validator"
	apperrors "github.com/better-wallet/smart-account/pkg/errors"
	"github.com/better-wallet/smart-account/pkg/types"
)

var (
	kernelAddr    = common.HexToAddress("0x00000000000000000000000000000000000a0001")
	eoaAddr       = common.HexToAddress("0x00000000000000000000000000000000000b0001")
	factoryAddr   = common.HexToAddress("0x0000000000000000000000000000000000200001")
	registryAddr  = common.HexToAddress("0x0000000000000000000000000000000000200002")
	adminAddr     = common.HexToAddress("0x0000000000000000000000000000000000200003")
	deployerAddr  = common.HexToAddress("0x00000000000000000000000000000000000d0001")
	recipientAddr = common.HexToAddress("0x00000000000000000000000000000000000e0001")
	strangerAddr  = common.HexToAddress("0x00000000000000000000000000000000000f0001")
)

type env struct {
	t        *testing.T
	ctx      context.Context
	ledger   *ledger.Ledger
	factory  *factory.Factory
	registry *factory.Registry
	owner    common.Address
}

func newEnv(t *testing.T) *env {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	e := &env{
		t:        t,
		ctx:      context.Background(),
		ledger:   ledger.New(31337, nil),
		factory:  factory.New(factoryAddr, kernelAddr, registryAddr),
		registry: factory.NewRegistry(registryAddr, adminAddr),
		owner:    crypto.PubkeyToAddress(key.PublicKey),
	}
	setFactory, err := factory.RegistryABI.Pack("setFactory", factoryAddr)
	require.NoError(t, err)

	require.NoError(t, e.ledger.Transact(e.ctx, func(st *ledger.State) error {
		st.Deploy(kernelAddr, account.NewKernel(kernelAddr))
		st.Deploy(eoaAddr, validator.NewEOAValidator())
		st.Deploy(factoryAddr, e.factory)
		st.Deploy(registryAddr, e.registry)
		st.Mint(deployerAddr, uint256.NewInt(10))
		_, err := st.Invoke(e.ctx, adminAddr, registryAddr, setFactory)
		return err
	}))
	return e
}

func (e *env) initializer(initialCall types.Call) []byte {
	e.t.Helper()
	init, err := account.EncodeInitializer(e.owner, eoaAddr, nil, initialCall)
	require.NoError(e.t, err)
	return init
}

func (e *env) deploy(salt common.Hash, initializer []byte, value uint64) (common.Address, error) {
	e.t.Helper()
	data, err := factory.EncodeDeploy(salt, initializer)
	require.NoError(e.t, err)

	var addr common.Address
	err = e.ledger.Transact(e.ctx, func(st *ledger.State) error {
		out, err := st.Call(e.ctx, &ledger.Message{
			From:  deployerAddr,
			To:    factoryAddr,
			Value: uint256.NewInt(value),
			Data:  data,
		})
		if err != nil {
			return err
		}
		res, err := factory.FactoryABI.Unpack("deployAccount", out)
		if err != nil {
			return err
		}
		addr = res[0].(common.Address)
		return nil
	})
	return addr, err
}

func TestDeployAccount(t *testing.T) {
	e := newEnv(t)
	salt := factory.SaltForOwner(e.owner)

	addr, err := e.deploy(salt, e.initializer(types.Call{}), 0)
	require.NoError(t, err)
	assert.Equal(t, e.factory.AddressForSalt(salt), addr)

	e.ledger.View(func(st *ledger.State) {
		assert.True(t, e.registry.IsAccount(st, addr))
		assert.False(t, e.registry.IsAccount(st, strangerAddr))
		assert.Equal(t, kernelAddr, account.ImplementationOf(st, addr))

		snap, err := account.Load(st, addr)
		require.NoError(t, err)
		assert.True(t, snap.Initialized())
		assert.Equal(t, []common.Address{e.owner}, snap.K1ListOwners())
		assert.Equal(t, []common.Address{eoaAddr}, snap.K1ListValidators())
	})

	_, err = e.deploy(salt, e.initializer(types.Call{}), 0)
	assert.True(t, apperrors.HasReason(err, apperrors.ReasonAlreadyExists))
}

func TestDeployAccount_Rejects(t *testing.T) {
	e := newEnv(t)
	salt := factory.SaltForOwner(e.owner)
	wrongSelector := e.initializer(types.Call{})
	wrongSelector[0] ^= 0xff

	tests := []struct {
		name        string
		salt        common.Hash
		initializer []byte
		reason      string
	}{
		{name: "empty initializer", salt: salt, initializer: nil, reason: apperrors.ReasonInvalidInitializer},
		{name: "wrong selector", salt: salt, initializer: wrongSelector, reason: apperrors.ReasonInvalidInitializer},
		{name: "truncated arguments", salt: salt, initializer: account.InitializerSelector[:], reason: apperrors.ReasonInvalidInitializer},
		{name: "salt of another owner", salt: factory.SaltForOwner(strangerAddr), initializer: e.initializer(types.Call{}), reason: apperrors.ReasonInitializationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.deploy(tt.salt, tt.initializer, 0)
			assert.True(t, apperrors.HasReason(err, tt.reason), "got %v", err)
		})
	}

	e.ledger.View(func(st *ledger.State) {
		assert.False(t, st.HasCode(e.factory.AddressForSalt(salt)))
	})
	assert.Equal(t, uint64(10), e.ledger.Balance(deployerAddr).Uint64())
}

func TestDeployAccount_PayableInitialCall(t *testing.T) {
	e := newEnv(t)
	salt := factory.SaltForOwner(e.owner)

	addr, err := e.deploy(salt, e.initializer(types.Call{Target: recipientAddr, Value: uint256.NewInt(9)}), 10)
	require.NoError(t, err)

	assert.Equal(t, uint64(9), e.ledger.Balance(recipientAddr).Uint64())
	assert.Equal(t, uint64(1), e.ledger.Balance(addr).Uint64())
	assert.Zero(t, e.ledger.Balance(factoryAddr).Uint64())
	assert.Zero(t, e.ledger.Balance(deployerAddr).Uint64())

	// An initial call the account cannot fund undoes the whole deployment.
	other := newEnv(t)
	_, err = other.deploy(factory.SaltForOwner(other.owner), other.initializer(types.Call{Target: recipientAddr, Value: uint256.NewInt(11)}), 10)
	assert.True(t, apperrors.HasReason(err, apperrors.ReasonInsufficientBalance))
	assert.Equal(t, uint64(10), other.ledger.Balance(deployerAddr).Uint64())
}

func TestRegistry_Access(t *testing.T) {
	e := newEnv(t)
	invoke := func(caller common.Address, method string, args ...interface{}) error {
		data, err := factory.RegistryABI.Pack(method, args...)
		require.NoError(t, err)
		return e.ledger.Transact(e.ctx, func(st *ledger.State) error {
			_, err := st.Invoke(e.ctx, caller, registryAddr, data)
			return err
		})
	}

	assert.True(t, apperrors.HasReason(invoke(strangerAddr, "setFactory", strangerAddr), apperrors.ReasonNotFromOwner))
	assert.True(t, apperrors.HasReason(invoke(strangerAddr, "register", strangerAddr), apperrors.ReasonNotFromFactory))
	assert.True(t, apperrors.HasReason(invoke(adminAddr, "setFactory", common.Address{}), apperrors.ReasonZeroAddress))

	e.ledger.View(func(st *ledger.State) {
		assert.Equal(t, factoryAddr, e.registry.Factory(st))
	})
}

func TestGetAddressForSalt(t *testing.T) {
	e := newEnv(t)
	salt := factory.SaltForOwner(e.owner)
	data, err := factory.FactoryABI.Pack("getAddressForSalt", [32]byte(salt))
	require.NoError(t, err)

	var out []byte
	require.NoError(t, e.ledger.Transact(e.ctx, func(st *ledger.State) error {
		out, err = st.Invoke(e.ctx, strangerAddr, factoryAddr, data)
		return err
	}))
	res, err := factory.FactoryABI.Unpack("getAddressForSalt", out)
	require.NoError(t, err)
	assert.Equal(t, e.factory.AddressForSalt(salt), res[0].(common.Address))
	assert.NotEqual(t, e.factory.AddressForSalt(factory.SaltForOwner(strangerAddr)), res[0].(common.Address))
}

package factory

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/better-wallet/smart-account/internal/account"
	"github.com/better-wallet/smart-account/internal/ledger"
	"github.com/better-wallet/smart-account/internal/logger"
	apperrors "github.com/better-wallet/smart-account/pkg/errors"
)

// FactoryABI describes the factory entrypoints.
var FactoryABI = mustParse(`[
{"type":"function","name":"deployAccount","stateMutability":"payable",
	"inputs":[{"name":"salt","type":"bytes32"},{"name":"initializer","type":"bytes"}],
	"outputs":[{"name":"account","type":"address"}]},
{"type":"function","name":"getAddressForSalt","stateMutability":"view",
	"inputs":[{"name":"salt","type":"bytes32"}],"outputs":[{"name":"account","type":"address"}]}
]`)

// proxyCode stands in for the proxy creation code in CREATE2 derivation.
var proxyCode = []byte("SmartAccountProxy")

// Factory deploys account proxies pointing at one implementation.
type Factory struct {
	address        common.Address
	implementation common.Address
	registry       common.Address
}

// New creates a factory deploying proxies of implementation and
// registering them in registry.
func New(addr, implementation, registry common.Address) *Factory {
	return &Factory{address: addr, implementation: implementation, registry: registry}
}

// Address returns the address the factory is deployed at.
func (f *Factory) Address() common.Address { return f.address }

// Implementation returns the implementation new accounts start on.
func (f *Factory) Implementation() common.Address { return f.implementation }

// AddressForSalt returns the address deployAccount uses for salt.
func (f *Factory) AddressForSalt(salt common.Hash) common.Address {
	initHash := crypto.Keccak256(proxyCode, f.implementation.Bytes())
	return crypto.CreateAddress2(f.address, salt, initHash)
}

// SaltForOwner returns the salt deployAccount expects for an owner.
func SaltForOwner(owner common.Address) common.Hash {
	return crypto.Keccak256Hash(owner.Bytes())
}

// EncodeDeploy packs a deployAccount call.
func EncodeDeploy(salt common.Hash, initializer []byte) ([]byte, error) {
	if initializer == nil {
		initializer = []byte{}
	}
	return FactoryABI.Pack("deployAccount", [32]byte(salt), initializer)
}

func (f *Factory) Call(ctx context.Context, st *ledger.State, msg *ledger.Message) ([]byte, error) {
	if len(msg.Data) < 4 {
		return nil, apperrors.InvalidInput(apperrors.ReasonUnknownMethod, "call data shorter than a selector")
	}
	method, err := FactoryABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, apperrors.InvalidInput(apperrors.ReasonUnknownMethod, fmt.Sprintf("%x", msg.Data[:4]))
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, apperrors.InvalidInput(apperrors.ReasonInvalidLength, err.Error())
	}
	salt := common.Hash(args[0].([32]byte))

	switch method.Name {
	case "deployAccount":
		addr, err := f.deployAccount(ctx, st, salt, args[1].([]byte), msg.Value)
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(addr)
	case "getAddressForSalt":
		return method.Outputs.Pack(f.AddressForSalt(salt))
	}
	return nil, apperrors.InvalidInput(apperrors.ReasonUnknownMethod, method.Name)
}

// deployAccount creates the proxy for salt, forwards value to it, runs the
// initializer and registers the account. value has already been credited
// to the factory by the caller's transfer.
func (f *Factory) deployAccount(ctx context.Context, st *ledger.State, salt common.Hash, initializer []byte, value *uint256.Int) (common.Address, error) {
	if len(initializer) < 4 || !bytes.Equal(initializer[:4], account.InitializerSelector[:]) {
		return common.Address{}, apperrors.InvalidInput(apperrors.ReasonInvalidInitializer, "initializer must call initialize")
	}
	args, err := account.ABI.Methods["initialize"].Inputs.Unpack(initializer[4:])
	if err != nil {
		return common.Address{}, apperrors.InvalidInput(apperrors.ReasonInvalidInitializer, err.Error())
	}
	owner := args[0].(common.Address)
	if salt != SaltForOwner(owner) {
		return common.Address{}, apperrors.InvalidInput(apperrors.ReasonInitializationFailed, "salt is not keccak256(owner)")
	}

	addr := f.AddressForSalt(salt)
	if st.HasCode(addr) {
		return common.Address{}, apperrors.StateConflict(apperrors.ReasonAlreadyExists, "account "+addr.Hex())
	}
	if err := account.DeployProxy(st, addr, f.implementation); err != nil {
		return common.Address{}, err
	}
	if err := st.Transfer(f.address, addr, value); err != nil {
		return common.Address{}, err
	}
	if _, err := st.Invoke(ctx, f.address, addr, initializer); err != nil {
		return common.Address{}, fmt.Errorf("initialize %s: %w", addr.Hex(), err)
	}

	register, err := RegistryABI.Pack("register", addr)
	if err != nil {
		return common.Address{}, apperrors.Internal(err.Error())
	}
	if _, err := st.Invoke(ctx, f.address, f.registry, register); err != nil {
		return common.Address{}, fmt.Errorf("register %s: %w", addr.Hex(), err)
	}

	logger.Info(ctx, "account deployed", "account", addr.Hex(), "owner", owner.Hex(), "implementation", f.implementation.Hex())
	return addr, nil
}

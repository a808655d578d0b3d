// Package factory deploys account proxies at deterministic addresses and
// keeps the registry of accounts it created.
package factory

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/better-wallet/smart-account/internal/ledger"
	"github.com/better-wallet/smart-account/internal/logger"
	apperrors "github.com/better-wallet/smart-account/pkg/errors"
)

// RegistryABI describes the registry entrypoints.
var RegistryABI = mustParse(`[
{"type":"function","name":"setFactory","inputs":[{"name":"factory","type":"address"}]},
{"type":"function","name":"register","inputs":[{"name":"account","type":"address"}]},
{"type":"function","name":"isAccount","stateMutability":"view",
	"inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]}
]`)

var (
	factorySlot   = crypto.Keccak256Hash([]byte("Registry.factory"))
	accountPrefix = []byte("Registry.account")
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid factory abi: %v", err))
	}
	return parsed
}

// Registry records which addresses are accounts deployed by the trusted factory.
type Registry struct {
	address common.Address
	owner   common.Address
}

// NewRegistry creates a registry administered by owner.
func NewRegistry(addr, owner common.Address) *Registry {
	return &Registry{address: addr, owner: owner}
}

// Address returns the address the registry is deployed at.
func (r *Registry) Address() common.Address { return r.address }

// Factory returns the factory allowed to register accounts.
func (r *Registry) Factory(st *ledger.State) common.Address {
	return common.BytesToAddress(st.GetState(r.address, factorySlot))
}

// IsAccount reports whether addr was registered by the factory.
func (r *Registry) IsAccount(st *ledger.State, addr common.Address) bool {
	return len(st.GetState(r.address, accountSlot(addr))) > 0
}

func accountSlot(addr common.Address) common.Hash {
	return crypto.Keccak256Hash(accountPrefix, addr.Bytes())
}

func (r *Registry) Call(ctx context.Context, st *ledger.State, msg *ledger.Message) ([]byte, error) {
	if len(msg.Data) == 0 {
		return nil, nil
	}
	if len(msg.Data) < 4 {
		return nil, apperrors.InvalidInput(apperrors.ReasonUnknownMethod, "call data shorter than a selector")
	}
	method, err := RegistryABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, apperrors.InvalidInput(apperrors.ReasonUnknownMethod, fmt.Sprintf("%x", msg.Data[:4]))
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, apperrors.InvalidInput(apperrors.ReasonInvalidLength, err.Error())
	}
	addr := args[0].(common.Address)

	switch method.Name {
	case "setFactory":
		if msg.From != r.owner {
			return nil, apperrors.Unauthorized(apperrors.ReasonNotFromOwner, msg.From.Hex())
		}
		if addr == (common.Address{}) {
			return nil, apperrors.InvalidInput(apperrors.ReasonZeroAddress, "factory")
		}
		st.SetState(r.address, factorySlot, addr.Bytes())
		logger.Info(ctx, "registry factory set", "factory", addr.Hex())
		return nil, nil
	case "register":
		if msg.From != r.Factory(st) {
			return nil, apperrors.Unauthorized(apperrors.ReasonNotFromFactory, msg.From.Hex())
		}
		st.SetState(r.address, accountSlot(addr), []byte{1})
		return nil, nil
	case "isAccount":
		return method.Outputs.Pack(r.IsAccount(st, addr))
	}
	return nil, apperrors.InvalidInput(apperrors.ReasonUnknownMethod, method.Name)
}

package account

import (
	"bytes"
	"context"
	"encoding/hex"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/better-wallet/smart-account/internal/ledger"
	apperrors "github.com/better-wallet/smart-account/pkg/errors"
)

// call is one decoded invocation of the kernel in the context of an account.
type call struct {
	self common.Address
	msg  *ledger.Message
	args []interface{}
}

type handler func(k *Kernel, ctx context.Context, st *ledger.State, c *call) ([]byte, error)

var handlers = map[string]handler{
	"initialize":        (*Kernel).initialize,
	"k1AddOwner":        (*Kernel).k1AddOwner,
	"k1RemoveOwner":     (*Kernel).k1RemoveOwner,
	"r1AddOwner":        (*Kernel).r1AddOwner,
	"r1RemoveOwner":     (*Kernel).r1RemoveOwner,
	"resetOwners":       (*Kernel).resetOwners,
	"k1AddValidator":    (*Kernel).k1AddValidator,
	"k1RemoveValidator": (*Kernel).k1RemoveValidator,
	"r1AddValidator":    (*Kernel).r1AddValidator,
	"r1RemoveValidator": (*Kernel).r1RemoveValidator,
	"addModule":         (*Kernel).addModule,
	"removeModule":      (*Kernel).removeModule,
	"executeFromModule": (*Kernel).executeFromModule,
	"addHook":           (*Kernel).addHook,
	"removeHook":        (*Kernel).removeHook,
	"setHookData":       (*Kernel).setHookData,
	"upgradeTo":         (*Kernel).upgradeTo,
	"batchCall":         (*Kernel).batchCall,
}

// Delegate decodes msg against the kernel ABI and runs it on self's storage.
// Calls without data are plain value transfers.
func (k *Kernel) Delegate(ctx context.Context, st *ledger.State, self common.Address, msg *ledger.Message) ([]byte, error) {
	if len(msg.Data) == 0 {
		return nil, nil
	}
	if len(msg.Data) < 4 {
		return nil, apperrors.InvalidInput(apperrors.ReasonUnknownMethod, "call data shorter than a selector")
	}

	method, err := lookupMethod(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, apperrors.InvalidInput(apperrors.ReasonInvalidLength, method.Name+": "+err.Error())
	}

	h, ok := handlers[method.Name]
	if !ok {
		return nil, apperrors.InvalidInput(apperrors.ReasonUnknownMethod, method.Name)
	}
	return h(k, ctx, st, &call{self: self, msg: msg, args: args})
}

func lookupMethod(selector []byte) (*abi.Method, error) {
	if bytes.Equal(selector, InitializerSelector[:]) {
		m := ABI.Methods["initialize"]
		return &m, nil
	}
	m, err := ABI.MethodById(selector)
	if err != nil || m.Name == "initialize" {
		return nil, apperrors.InvalidInput(apperrors.ReasonUnknownMethod, "0x"+hex.EncodeToString(selector))
	}
	return m, nil
}

// onlySelfOrModule enforces the management authorization rule.
func onlySelfOrModule(c *call, rec *record) error {
	if c.msg.From == c.self || rec.isModule(c.msg.From) {
		return nil
	}
	return apperrors.Unauthorized(apperrors.ReasonNotFromSelfOrModule, c.msg.From.Hex())
}

func onlySelf(c *call) error {
	if c.msg.From == c.self {
		return nil
	}
	return apperrors.Unauthorized(apperrors.ReasonNotFromSelf, c.msg.From.Hex())
}

// authorized loads the account record and applies onlySelfOrModule.
func authorized(st *ledger.State, c *call) (*record, error) {
	rec, err := loadRecord(st, c.self)
	if err != nil {
		return nil, err
	}
	if err := onlySelfOrModule(c, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func argAddress(c *call, i int) common.Address {
	return c.args[i].(common.Address)
}

func argBytes(c *call, i int) []byte {
	return c.args[i].([]byte)
}

func argBool(c *call, i int) bool {
	return c.args[i].(bool)
}

func argHash(c *call, i int) common.Hash {
	return common.Hash(c.args[i].([32]byte))
}

func argBig(c *call, i int) *big.Int {
	return c.args[i].(*big.Int)
}

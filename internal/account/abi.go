package account

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/better-wallet/smart-account/pkg/types"
)

const kernelABIJSON = `[
{"type":"function","name":"initialize","inputs":[
	{"name":"owner","type":"address"},
	{"name":"validator","type":"address"},
	{"name":"modules","type":"bytes[]"},
	{"name":"initialCall","type":"tuple","components":[
		{"name":"target","type":"address"},
		{"name":"allowFailure","type":"bool"},
		{"name":"value","type":"uint256"},
		{"name":"callData","type":"bytes"}]}]},
{"type":"function","name":"k1AddOwner","inputs":[{"name":"addr","type":"address"}]},
{"type":"function","name":"k1RemoveOwner","inputs":[{"name":"addr","type":"address"}]},
{"type":"function","name":"r1AddOwner","inputs":[{"name":"pubKey","type":"bytes"}]},
{"type":"function","name":"r1RemoveOwner","inputs":[{"name":"pubKey","type":"bytes"}]},
{"type":"function","name":"resetOwners","inputs":[{"name":"pubKey","type":"bytes"}]},
{"type":"function","name":"k1AddValidator","inputs":[{"name":"validator","type":"address"}]},
{"type":"function","name":"k1RemoveValidator","inputs":[{"name":"validator","type":"address"}]},
{"type":"function","name":"r1AddValidator","inputs":[{"name":"validator","type":"address"}]},
{"type":"function","name":"r1RemoveValidator","inputs":[{"name":"validator","type":"address"}]},
{"type":"function","name":"addModule","inputs":[{"name":"moduleAndData","type":"bytes"}]},
{"type":"function","name":"removeModule","inputs":[{"name":"module","type":"address"}]},
{"type":"function","name":"executeFromModule","inputs":[
	{"name":"to","type":"address"},
	{"name":"value","type":"uint256"},
	{"name":"data","type":"bytes"}]},
{"type":"function","name":"addHook","inputs":[
	{"name":"hookAndData","type":"bytes"},
	{"name":"isValidation","type":"bool"}]},
{"type":"function","name":"removeHook","inputs":[
	{"name":"hook","type":"address"},
	{"name":"isValidation","type":"bool"}]},
{"type":"function","name":"setHookData","inputs":[
	{"name":"key","type":"bytes32"},
	{"name":"data","type":"bytes"}]},
{"type":"function","name":"upgradeTo","inputs":[{"name":"newImplementation","type":"address"}]},
{"type":"function","name":"batchCall","inputs":[
	{"name":"calls","type":"tuple[]","components":[
		{"name":"target","type":"address"},
		{"name":"allowFailure","type":"bool"},
		{"name":"value","type":"uint256"},
		{"name":"callData","type":"bytes"}]}]}
]`

// ABI describes every entrypoint of the account kernel.
var ABI = mustParseABI(kernelABIJSON)

// InitializerSelector is the selector factories prefix initializer data with.
var InitializerSelector = [4]byte{0xb4, 0xe5, 0x81, 0xf5}

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid kernel abi: %v", err))
	}
	return parsed
}

// callTuple mirrors the (address,bool,uint256,bytes) call tuple.
type callTuple struct {
	Target       common.Address
	AllowFailure bool
	Value        *big.Int
	CallData     []byte
}

func toCallTuple(c types.Call) callTuple {
	value := new(big.Int)
	if c.Value != nil {
		value = c.Value.ToBig()
	}
	data := c.CallData
	if data == nil {
		data = []byte{}
	}
	return callTuple{Target: c.Target, AllowFailure: c.AllowFailure, Value: value, CallData: data}
}

func (t callTuple) call() (types.Call, error) {
	value, overflow := uint256.FromBig(t.Value)
	if overflow {
		return types.Call{}, fmt.Errorf("call value overflows uint256")
	}
	return types.Call{Target: t.Target, AllowFailure: t.AllowFailure, Value: value, CallData: t.CallData}, nil
}

// EncodeInitializer builds the initializer data a factory passes to a new account.
func EncodeInitializer(owner, validator common.Address, modules [][]byte, initialCall types.Call) ([]byte, error) {
	if modules == nil {
		modules = [][]byte{}
	}
	args, err := ABI.Methods["initialize"].Inputs.Pack(owner, validator, modules, toCallTuple(initialCall))
	if err != nil {
		return nil, fmt.Errorf("failed to pack initializer: %w", err)
	}
	return append(InitializerSelector[:], args...), nil
}

// EncodeBatchCall packs a batchCall invocation.
func EncodeBatchCall(calls []types.Call) ([]byte, error) {
	tuples := make([]callTuple, len(calls))
	for i, c := range calls {
		tuples[i] = toCallTuple(c)
	}
	return ABI.Pack("batchCall", tuples)
}

// ModuleAndData concatenates an address with its init data.
func ModuleAndData(addr common.Address, initData []byte) []byte {
	out := make([]byte, 0, common.AddressLength+len(initData))
	out = append(out, addr.Bytes()...)
	return append(out, initData...)
}

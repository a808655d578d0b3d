package recovery

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/better-wallet/smart-account/pkg/types"
)

const recoveryDataTuple = `{"name":"data","type":"tuple","components":[
	{"name":"recoveringAddress","type":"address"},
	{"name":"newOwner","type":"bytes"},
	{"name":"nonce","type":"uint256"}]}`

const configTuple = `{"name":"config","type":"tuple","components":[
	{"name":"threshold","type":"uint256"},
	{"name":"timelock","type":"uint256"},
	{"name":"guardians","type":"address[]"}]}`

const sharedMethods = `
{"type":"function","name":"executeRecovery","inputs":[{"name":"account","type":"address"}]},
{"type":"function","name":"stopRecovery","inputs":[]}`

// CloudABI describes the entrypoints of the cloud recovery module.
var CloudABI = mustParse(`[
{"type":"function","name":"startRecovery","inputs":[` + recoveryDataTuple + `,{"name":"signature","type":"bytes"}]},
{"type":"function","name":"updateGuardian","inputs":[{"name":"guardian","type":"address"}]},` + sharedMethods + `]`)

// SocialABI describes the entrypoints of the social recovery module.
var SocialABI = mustParse(`[
{"type":"function","name":"startRecovery","inputs":[` + recoveryDataTuple + `,
	{"name":"guardianData","type":"tuple[]","components":[
		{"name":"guardian","type":"address"},
		{"name":"signature","type":"bytes"}]}]},
{"type":"function","name":"updateConfig","inputs":[` + configTuple + `]},` + sharedMethods + `]`)

var (
	addressArgs = mustArgs(`[{"name":"guardian","type":"address"}]`)
	configArgs  = mustArgs(`[` + configTuple + `]`)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid recovery abi: %v", err))
	}
	return parsed
}

// mustArgs parses a bare argument list by wrapping it in a dummy method.
func mustArgs(inputs string) abi.Arguments {
	parsed := mustParse(`[{"type":"function","name":"args","inputs":` + inputs + `}]`)
	return parsed.Methods["args"].Inputs
}

type recoveryDataTupleT struct {
	RecoveringAddress common.Address
	NewOwner          []byte
	Nonce             *big.Int
}

type guardianDataT struct {
	Guardian  common.Address
	Signature []byte
}

type configT struct {
	Threshold *big.Int
	Timelock  *big.Int
	Guardians []common.Address
}

func toRecoveryTuple(d types.RecoveryData) recoveryDataTupleT {
	owner := []byte(d.NewOwner)
	if owner == nil {
		owner = []byte{}
	}
	return recoveryDataTupleT{
		RecoveringAddress: d.RecoveringAddress,
		NewOwner:          owner,
		Nonce:             new(big.Int).SetUint64(d.Nonce),
	}
}

func fromRecoveryTuple(arg interface{}) (types.RecoveryData, bool) {
	t := *abi.ConvertType(arg, new(recoveryDataTupleT)).(*recoveryDataTupleT)
	if !t.Nonce.IsUint64() {
		return types.RecoveryData{}, false
	}
	return types.RecoveryData{RecoveringAddress: t.RecoveringAddress, NewOwner: t.NewOwner, Nonce: t.Nonce.Uint64()}, true
}

func toConfigTuple(cfg types.SocialRecoveryConfig) configT {
	guardians := cfg.Guardians
	if guardians == nil {
		guardians = []common.Address{}
	}
	return configT{
		Threshold: new(big.Int).SetUint64(cfg.Threshold),
		Timelock:  new(big.Int).SetUint64(uint64(cfg.Timelock.Seconds())),
		Guardians: guardians,
	}
}

// EncodeCloudInit builds the init data of the cloud module.
func EncodeCloudInit(guardian common.Address) ([]byte, error) {
	return addressArgs.Pack(guardian)
}

// EncodeSocialInit builds the init data of the social module.
func EncodeSocialInit(cfg types.SocialRecoveryConfig) ([]byte, error) {
	return configArgs.Pack(toConfigTuple(cfg))
}

// EncodeCloudStart packs a cloud startRecovery call.
func EncodeCloudStart(data types.RecoveryData, signature []byte) ([]byte, error) {
	return CloudABI.Pack("startRecovery", toRecoveryTuple(data), signature)
}

// EncodeSocialStart packs a social startRecovery call.
func EncodeSocialStart(data types.RecoveryData, approvals []types.GuardianData) ([]byte, error) {
	tuples := make([]guardianDataT, len(approvals))
	for i, a := range approvals {
		tuples[i] = guardianDataT{Guardian: a.Guardian, Signature: a.Signature}
	}
	return SocialABI.Pack("startRecovery", toRecoveryTuple(data), tuples)
}

// EncodeUpdateConfig packs a social updateConfig call.
func EncodeUpdateConfig(cfg types.SocialRecoveryConfig) ([]byte, error) {
	return SocialABI.Pack("updateConfig", toConfigTuple(cfg))
}

package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/better-wallet/smart-account/internal/app"
	"github.com/better-wallet/smart-account/pkg/auth"
	"github.com/better-wallet/smart-account/pkg/types"
)

func run(t *testing.T, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute(), out.String())
	return out.Bytes()
}

func runErr(t *testing.T, args ...string) error {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestKeygenAndSignK1(t *testing.T) {
	var key keyOutput
	require.NoError(t, json.Unmarshal(run(t, "keygen", "--type", "k1"), &key))
	require.NotNil(t, key.Address)

	account := common.HexToAddress("0x00000000000000000000000000000000000a0001")
	to := common.HexToAddress("0x00000000000000000000000000000000000e0001")
	var hash hashOutput
	require.NoError(t, json.Unmarshal(run(t, "hash", "operation",
		"--account", account.Hex(), "--to", to.Hex(), "--value", "5", "--nonce", "3"), &hash))

	expected, err := auth.OperationHash(31337, account, types.Transaction{To: to, Value: uint256.NewInt(5), Nonce: 3})
	require.NoError(t, err)
	assert.Equal(t, expected, hash.Hash)

	var sig signOutput
	require.NoError(t, json.Unmarshal(run(t, "sign", "--key", key.PrivateKey, "--hash", hash.Hash.Hex()), &sig))
	assert.True(t, auth.VerifyK1(hash.Hash, sig.Signature, *key.Address))
}

func TestKeygenAndSignR1(t *testing.T) {
	var key keyOutput
	require.NoError(t, json.Unmarshal(run(t, "keygen", "--type", "r1"), &key))
	pubBytes, err := hexutil.Decode(key.PublicKey)
	require.NoError(t, err)
	pub, err := types.R1PublicKeyFromBytes(pubBytes)
	require.NoError(t, err)

	hash := common.HexToHash("0x1234")
	var sig signOutput
	require.NoError(t, json.Unmarshal(run(t, "sign", "--type", "r1", "--key", key.PrivateKey, "--hash", hash.Hex()), &sig))
	assert.True(t, auth.VerifyR1(hash.Bytes(), sig.Signature, pub))

	require.NoError(t, json.Unmarshal(run(t, "sign", "--type", "passkey", "--key", key.PrivateKey, "--hash", hash.Hex()), &sig))
	assert.True(t, auth.VerifyPasskey(hash, sig.Signature, pub))
}

func TestRecoveryHash(t *testing.T) {
	account := common.HexToAddress("0x00000000000000000000000000000000000a0001")
	newOwner := common.HexToAddress("0x00000000000000000000000000000000000e0042")

	var hash hashOutput
	require.NoError(t, json.Unmarshal(run(t, "hash", "recovery", "--kind", "social",
		"--account", account.Hex(), "--new-owner", newOwner.Hex(), "--nonce", "2"), &hash))

	expected, err := auth.RecoveryHash(auth.Domain{
		Name:              "SmartAccountRecovery",
		Version:           "1",
		ChainID:           31337,
		VerifyingContract: app.DefaultAddresses().SocialRecovery,
	}, types.RecoveryData{RecoveringAddress: account, NewOwner: newOwner.Bytes(), Nonce: 2})
	require.NoError(t, err)
	assert.Equal(t, expected, hash.Hash)
}

func TestEncodeInitializer(t *testing.T) {
	owner := common.HexToAddress("0x00000000000000000000000000000000000b0001")
	guardian := common.HexToAddress("0x00000000000000000000000000000000000b0002")

	var module encodeOutput
	require.NoError(t, json.Unmarshal(run(t, "encode", "cloud-module", "--guardian", guardian.Hex()), &module))
	assert.Equal(t, app.DefaultAddresses().CloudRecovery.Bytes(), []byte(module.Data[:common.AddressLength]))

	var out initializerOutput
	require.NoError(t, json.Unmarshal(run(t, "encode", "initializer", "--owner", owner.Hex(), "--module", module.Data.String()), &out))
	assert.Equal(t, []byte{0xb4, 0xe5, 0x81, 0xf5}, []byte(out.Initializer[:4]))
	assert.NotEqual(t, common.Address{}, out.Address)
}

func TestInvalidInput(t *testing.T) {
	assert.Error(t, runErr(t, "keygen", "--type", "ed25519"))
	assert.Error(t, runErr(t, "sign", "--key", "0x01", "--hash", "0x12"))
	assert.Error(t, runErr(t, "hash", "recovery", "--kind", "email", "--account", "0x00000000000000000000000000000000000a0001", "--new-owner", "0x00"))
	assert.Error(t, runErr(t, "hash", "operation", "--account", "nope", "--to", "nope"))
}

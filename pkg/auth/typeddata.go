package auth

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/better-wallet/smart-account/pkg/types"
)

// Domain of account operation signatures.
const (
	AccountDomainName    = "SmartAccount"
	AccountDomainVersion = "1"
)

var domainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// Domain identifies the contract a typed signature is bound to.
type Domain struct {
	Name              string
	Version           string
	ChainID           uint64
	VerifyingContract common.Address
}

func (d Domain) typedDataDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              d.Name,
		Version:           d.Version,
		ChainId:           (*math.HexOrDecimal256)(new(big.Int).SetUint64(d.ChainID)),
		VerifyingContract: d.VerifyingContract.Hex(),
	}
}

// OperationHash returns the EIP-712 hash an owner signs to authorize tx on account.
func OperationHash(chainID uint64, account common.Address, tx types.Transaction) (common.Hash, error) {
	value := "0"
	if tx.Value != nil {
		value = tx.Value.Dec()
	}

	td := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainType,
			"Transaction": {
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "data", Type: "bytes"},
				{Name: "nonce", Type: "uint256"},
			},
		},
		PrimaryType: "Transaction",
		Domain: Domain{
			Name:              AccountDomainName,
			Version:           AccountDomainVersion,
			ChainID:           chainID,
			VerifyingContract: account,
		}.typedDataDomain(),
		Message: apitypes.TypedDataMessage{
			"to":    tx.To.Hex(),
			"value": value,
			"data":  []byte(tx.Data),
			"nonce": new(big.Int).SetUint64(tx.Nonce).String(),
		},
	}
	return hashTypedData(td)
}

// RecoveryHash returns the EIP-712 hash guardians sign to approve data.
func RecoveryHash(domain Domain, data types.RecoveryData) (common.Hash, error) {
	td := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainType,
			"RecoveryData": {
				{Name: "recoveringAddress", Type: "address"},
				{Name: "newOwner", Type: "bytes"},
				{Name: "nonce", Type: "uint256"},
			},
		},
		PrimaryType: "RecoveryData",
		Domain:      domain.typedDataDomain(),
		Message: apitypes.TypedDataMessage{
			"recoveringAddress": data.RecoveringAddress.Hex(),
			"newOwner":          []byte(data.NewOwner),
			"nonce":             new(big.Int).SetUint64(data.Nonce).String(),
		},
	}
	return hashTypedData(td)
}

func hashTypedData(td apitypes.TypedData) (common.Hash, error) {
	domainSeparator, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash domain: %w", err)
	}

	typedDataHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash message: %w", err)
	}

	// keccak256("\x19\x01" || domainSeparator || hashStruct(message))
	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", domainSeparator, typedDataHash))
	return crypto.Keccak256Hash(rawData), nil
}

package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/better-wallet/smart-account/pkg/auth"
	"github.com/better-wallet/smart-account/pkg/types"
)

const (
	keyTypeK1      = "k1"
	keyTypeR1      = "r1"
	keyTypePasskey = "passkey"
)

type keyOutput struct {
	Type       string          `json:"type"`
	PrivateKey string          `json:"privateKey"`
	Address    *common.Address `json:"address,omitempty"`
	PublicKey  string          `json:"publicKey,omitempty"`
}

func newKeygenCmd() *cobra.Command {
	var keyType string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generates a K1 owner key or an R1 (TEE/passkey) owner key.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := generateKey(keyType)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&keyType, "type", keyTypeK1, "Key type: k1 or r1")
	return cmd
}

func generateKey(keyType string) (*keyOutput, error) {
	switch keyType {
	case keyTypeK1:
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate key: %w", err)
		}
		addr := crypto.PubkeyToAddress(key.PublicKey)
		return &keyOutput{Type: keyType, PrivateKey: hexutil.Encode(crypto.FromECDSA(key)), Address: &addr}, nil
	case keyTypeR1:
		key, err := auth.GenerateR1Key()
		if err != nil {
			return nil, err
		}
		return r1KeyOutput(key)
	}
	return nil, fmt.Errorf("unknown key type %q (must be k1 or r1)", keyType)
}

func r1KeyOutput(key *ecdsa.PrivateKey) (*keyOutput, error) {
	priv, err := key.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode private key: %w", err)
	}
	pub, err := auth.R1PublicKey(&key.PublicKey)
	if err != nil {
		return nil, err
	}
	return &keyOutput{Type: keyTypeR1, PrivateKey: hexutil.Encode(priv), PublicKey: hexutil.Encode(pub[:])}, nil
}

func parseK1Key(raw string) (*ecdsa.PrivateKey, error) {
	b, err := hexutil.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid key hex: %w", err)
	}
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, fmt.Errorf("invalid k1 key: %w", err)
	}
	return key, nil
}

func parseR1Key(raw string) (*ecdsa.PrivateKey, error) {
	b, err := hexutil.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid key hex: %w", err)
	}
	key, err := ecdsa.ParseRawPrivateKey(elliptic.P256(), b)
	if err != nil {
		return nil, fmt.Errorf("invalid r1 key: %w", err)
	}
	return key, nil
}

// parseOwner accepts a 20-byte K1 owner or a 64-byte R1 public key.
func parseOwner(raw string) ([]byte, error) {
	b, err := hexutil.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid owner hex: %w", err)
	}
	if len(b) != common.AddressLength && len(b) != types.R1PublicKeyLength {
		return nil, fmt.Errorf("owner must be %d or %d bytes, got %d", common.AddressLength, types.R1PublicKeyLength, len(b))
	}
	return b, nil
}

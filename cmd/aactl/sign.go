package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/better-wallet/smart-account/pkg/auth"
)

type signOutput struct {
	Type      string        `json:"type"`
	Signature hexutil.Bytes `json:"signature"`
}

func newSignCmd() *cobra.Command {
	var (
		keyType string
		key     string
		hash    string
		rpID    string
		origin  string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Signs an operation or recovery hash.",
		Long: "Signs a 32-byte hash. k1 yields r||s||v for the EOA validator and guardians, " +
			"r1 yields raw r||s for the TEE validator, passkey yields a WebAuthn assertion.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hexutil.Decode(hash)
			if err != nil || len(raw) != common.HashLength {
				return fmt.Errorf("--hash must be 32 bytes of hex")
			}
			sig, err := signHash(keyType, key, common.BytesToHash(raw), rpID, origin)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), signOutput{Type: keyType, Signature: sig})
		},
	}
	cmd.Flags().StringVar(&keyType, "type", keyTypeK1, "Signer type: k1, r1 or passkey")
	cmd.Flags().StringVar(&key, "key", "", "Private key hex")
	cmd.Flags().StringVar(&hash, "hash", "", "Hash to sign")
	cmd.Flags().StringVar(&rpID, "rp-id", "localhost", "WebAuthn relying party ID (passkey only)")
	cmd.Flags().StringVar(&origin, "origin", "http://localhost", "WebAuthn origin (passkey only)")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("hash")
	return cmd
}

func signHash(keyType, key string, hash common.Hash, rpID, origin string) ([]byte, error) {
	switch keyType {
	case keyTypeK1:
		priv, err := parseK1Key(key)
		if err != nil {
			return nil, err
		}
		return auth.SignK1(hash, priv)
	case keyTypeR1:
		priv, err := parseR1Key(key)
		if err != nil {
			return nil, err
		}
		return auth.SignR1(hash.Bytes(), priv)
	case keyTypePasskey:
		priv, err := parseR1Key(key)
		if err != nil {
			return nil, err
		}
		return auth.SignPasskey(hash, priv, rpID, origin)
	}
	return nil, fmt.Errorf("unknown signer type %q (must be k1, r1 or passkey)", keyType)
}

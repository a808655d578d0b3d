package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/better-wallet/smart-account/internal/app"
	"github.com/better-wallet/smart-account/pkg/auth"
	"github.com/better-wallet/smart-account/pkg/types"
)

type hashOutput struct {
	Hash common.Hash `json:"hash"`
}

func newHashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Computes EIP-712 hashes for operations and recoveries.",
	}
	cmd.AddCommand(newOperationHashCmd())
	cmd.AddCommand(newRecoveryHashCmd())
	return cmd
}

func newOperationHashCmd() *cobra.Command {
	var (
		chainID uint64
		account string
		to      string
		value   string
		data    string
		nonce   uint64
	)
	cmd := &cobra.Command{
		Use:   "operation",
		Short: "Hash an owner signs to authorize a transaction on an account.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(account) || !common.IsHexAddress(to) {
				return fmt.Errorf("--account and --to must be addresses")
			}
			amount, err := uint256.FromDecimal(value)
			if err != nil {
				return fmt.Errorf("invalid --value: %w", err)
			}
			callData, err := hexutil.Decode(data)
			if err != nil {
				return fmt.Errorf("invalid --data: %w", err)
			}
			hash, err := auth.OperationHash(chainID, common.HexToAddress(account), types.Transaction{
				To:    common.HexToAddress(to),
				Value: amount,
				Data:  callData,
				Nonce: nonce,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), hashOutput{Hash: hash})
		},
	}
	cmd.Flags().Uint64Var(&chainID, "chain-id", 31337, "Chain ID")
	cmd.Flags().StringVar(&account, "account", "", "Account address")
	cmd.Flags().StringVar(&to, "to", "", "Call target")
	cmd.Flags().StringVar(&value, "value", "0", "Call value in wei")
	cmd.Flags().StringVar(&data, "data", "0x", "Call data")
	cmd.Flags().Uint64Var(&nonce, "nonce", 0, "Account operation nonce")
	return cmd
}

func newRecoveryHashCmd() *cobra.Command {
	var (
		chainID  uint64
		module   string
		kind     string
		name     string
		version  string
		account  string
		newOwner string
		nonce    uint64
	)
	cmd := &cobra.Command{
		Use:   "recovery",
		Short: "Hash guardians sign to start a recovery.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			moduleAddr, err := recoveryModuleAddress(kind, module)
			if err != nil {
				return err
			}
			if !common.IsHexAddress(account) {
				return fmt.Errorf("--account must be an address")
			}
			owner, err := parseOwner(newOwner)
			if err != nil {
				return err
			}
			hash, err := auth.RecoveryHash(auth.Domain{
				Name:              name,
				Version:           version,
				ChainID:           chainID,
				VerifyingContract: moduleAddr,
			}, types.RecoveryData{
				RecoveringAddress: common.HexToAddress(account),
				NewOwner:          owner,
				Nonce:             nonce,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), hashOutput{Hash: hash})
		},
	}
	cmd.Flags().Uint64Var(&chainID, "chain-id", 31337, "Chain ID")
	cmd.Flags().StringVar(&kind, "kind", string(app.RecoveryCloud), "Recovery module of the default deployment: cloud or social")
	cmd.Flags().StringVar(&module, "module", "", "Recovery module address (overrides --kind)")
	cmd.Flags().StringVar(&name, "name", "SmartAccountRecovery", "EIP-712 domain name of the module")
	cmd.Flags().StringVar(&version, "version", "1", "EIP-712 domain version of the module")
	cmd.Flags().StringVar(&account, "account", "", "Account being recovered")
	cmd.Flags().StringVar(&newOwner, "new-owner", "", "New owner: 20-byte address or 64-byte R1 public key")
	cmd.Flags().Uint64Var(&nonce, "nonce", 0, "Recovery nonce of the account")
	return cmd
}

func recoveryModuleAddress(kind, module string) (common.Address, error) {
	if module != "" {
		if !common.IsHexAddress(module) {
			return common.Address{}, fmt.Errorf("--module must be an address")
		}
		return common.HexToAddress(module), nil
	}
	addrs := app.DefaultAddresses()
	switch app.RecoveryKind(kind) {
	case app.RecoveryCloud:
		return addrs.CloudRecovery, nil
	case app.RecoverySocial:
		return addrs.SocialRecovery, nil
	}
	return common.Address{}, fmt.Errorf("unknown recovery kind %q", kind)
}

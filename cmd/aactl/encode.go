package main

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/better-wallet/smart-account/internal/account"
	"github.com/better-wallet/smart-account/internal/app"
	"github.com/better-wallet/smart-account/internal/factory"
	"github.com/better-wallet/smart-account/internal/recovery"
	"github.com/better-wallet/smart-account/pkg/types"
)

type encodeOutput struct {
	Data hexutil.Bytes `json:"data"`
}

type initializerOutput struct {
	Salt        common.Hash    `json:"salt"`
	Address     common.Address `json:"address"`
	Initializer hexutil.Bytes  `json:"initializer"`
}

func newEncodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encodes module init data and account initializers.",
	}
	cmd.AddCommand(newEncodeCloudModuleCmd())
	cmd.AddCommand(newEncodeInitializerCmd())
	return cmd
}

func newEncodeCloudModuleCmd() *cobra.Command {
	var (
		module   string
		guardian string
	)
	cmd := &cobra.Command{
		Use:   "cloud-module",
		Short: "moduleAndData enabling cloud recovery with one guardian.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			moduleAddr, err := recoveryModuleAddress(string(app.RecoveryCloud), module)
			if err != nil {
				return err
			}
			if !common.IsHexAddress(guardian) {
				return fmt.Errorf("--guardian must be an address")
			}
			initData, err := recovery.EncodeCloudInit(common.HexToAddress(guardian))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), encodeOutput{Data: account.ModuleAndData(moduleAddr, initData)})
		},
	}
	cmd.Flags().StringVar(&module, "module", "", "Cloud recovery module address (default deployment if empty)")
	cmd.Flags().StringVar(&guardian, "guardian", "", "Guardian address")
	return cmd
}

func newEncodeInitializerCmd() *cobra.Command {
	var (
		owner     string
		validator string
		modules   []string
		factoryAt string
		kernelAt  string
	)
	cmd := &cobra.Command{
		Use:   "initializer",
		Short: "Initializer, salt and counterfactual address of a new account.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, a := range []string{owner, validator, factoryAt, kernelAt} {
				if !common.IsHexAddress(a) {
					return fmt.Errorf("invalid address %q", a)
				}
			}
			encoded := make([][]byte, 0, len(modules))
			for _, m := range modules {
				b, err := hexutil.Decode(strings.TrimSpace(m))
				if err != nil {
					return fmt.Errorf("invalid --module %q: %w", m, err)
				}
				encoded = append(encoded, b)
			}

			ownerAddr := common.HexToAddress(owner)
			initData, err := account.EncodeInitializer(ownerAddr, common.HexToAddress(validator), encoded, types.Call{})
			if err != nil {
				return err
			}
			f := factory.New(common.HexToAddress(factoryAt), common.HexToAddress(kernelAt), common.Address{})
			salt := factory.SaltForOwner(ownerAddr)
			return printJSON(cmd.OutOrStdout(), initializerOutput{
				Salt:        salt,
				Address:     f.AddressForSalt(salt),
				Initializer: initData,
			})
		},
	}
	defaults := app.DefaultAddresses()
	cmd.Flags().StringVar(&owner, "owner", "", "K1 owner address")
	cmd.Flags().StringVar(&validator, "validator", defaults.EOAValidator.Hex(), "Default validator")
	cmd.Flags().StringSliceVar(&modules, "module", nil, "moduleAndData hex, repeatable")
	cmd.Flags().StringVar(&factoryAt, "factory", defaults.Factory.Hex(), "Factory address")
	cmd.Flags().StringVar(&kernelAt, "kernel", defaults.Kernel.Hex(), "Account implementation address")
	return cmd
}

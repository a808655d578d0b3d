package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "aactl",
		Short:             "Key, hash and signature helper for smart accounts.",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		SilenceErrors:     true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newKeygenCmd())
	root.AddCommand(newHashCmd())
	root.AddCommand(newSignCmd())
	root.AddCommand(newEncodeCmd())
	return root
}

// printJSON writes v indented to w.
func printJSON(w io.Writer, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

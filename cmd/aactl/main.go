// Command aactl generates keys, computes the hashes accounts and recovery
// modules expect, and signs them, for driving the HTTP API by hand.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

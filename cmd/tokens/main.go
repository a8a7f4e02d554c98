// Package main is a command-line client for listing and sending SPL tokens.
package main

import "solana-token-transfer/cmd/tokens/cmd"

func main() {
	cmd.Execute()
}

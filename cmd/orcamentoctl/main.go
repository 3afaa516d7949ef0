// Command orcamentoctl is the operator CLI: schema migrations and direct
// access to the budget operations against the configured backend.
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

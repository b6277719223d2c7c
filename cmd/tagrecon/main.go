// TagRecon - tag-based peptide identification with mass shift reconciliation
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/tagrecon/cmd/tagrecon/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Command reconcile compares purchase orders with proforma invoices, either
// once from the command line, for a manifest of pairs, or as an HTTP service.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/FACorreiaa/po-reconciler/internal/domain/lineitem"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitConfigError = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	return exitCode(err)
}

func exitCode(err error) int {
	var cfgErr lineitem.ConfigurationError
	if errors.As(err, &cfgErr) {
		return exitConfigError
	}
	return exitFailure
}

// Package main is the entry point for pdpctl, the PDP's one-shot command-line tool.
package main

import (
	"fmt"
	"os"

	"github.com/cedar-pdp/pdp/cmd/pdpctl/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pdpctl: %v\n", err)
		os.Exit(1)
	}
}

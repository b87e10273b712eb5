// Package main is the entry point for the suggestd CLI.
package main

import (
	"os"

	"github.com/runger/suggestd/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

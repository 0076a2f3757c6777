// Package main is the entry point for the dsync daemon and CLI.
package main

import (
	"os"

	"github.com/aidanlsb/dailysync/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

// Package main is the entry point for the cu-planner CLI.
package main

import (
	"os"

	"cu-planner/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/portview/backend/cmd/portview/commands"
)

// main is the entry point for the Portview CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

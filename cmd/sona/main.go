// Package main provides the sona CLI tool.
//
// Usage:
//
//	sona [flags] <command> [args]
//
// Commands:
//
//	chat     - Interactive conversation with a concierge
//	history  - Conversation history management
//	config   - Configuration management
//	version  - Show version information
//
// Configuration:
//
//	The CLI stores configuration in ~/.sona/sona/
//	Use 'sona config' commands to manage contexts.
package main

import (
	"fmt"
	"os"

	"github.com/lumenkind/sona/cmd/sona/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

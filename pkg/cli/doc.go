// Package cli provides common utilities for sona command-line tools.
//
// This package includes:
//   - Configuration management (contexts)
//   - Output formatting (JSON, YAML, raw, jq filtering)
//   - Request file loading (YAML/JSON)
//   - Terminal styling
//
// Configuration is stored in ~/.sona/<app>/ directory, supporting
// multiple contexts similar to kubectl.
//
// Example usage:
//
//	// Initialize config for your app
//	cfg, err := cli.LoadConfig("sona")
//
//	// Get current context
//	ctx, err := cfg.GetCurrentContext()
//
//	// Output result
//	cli.Output(result, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    File:   outputPath,
//	})
package cli

// Package cmd implements the command-line interface for petrel.
//
// This package provides the following commands:
//   - serve: Start the MCP server exposing JMAP mail, contacts and calendar tools
//   - digest: Generate an HTML inbox digest with one-shot action links
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// The serve command is the default command when no subcommand is specified.
package cmd

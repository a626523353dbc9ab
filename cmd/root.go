package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the petrel application
var rootCmd = &cobra.Command{
	Use:   "petrel",
	Short: "MCP gateway for JMAP mail, contacts and calendars",
	Long: `petrel exposes a JMAP mailbox to LLM agents over the Model Context
Protocol, with OAuth-gated access, per-caller permission filtering and
datamarking of externally authored content.

It can run as:
  - An MCP server over stdio (default, for local MCP clients)
  - An MCP server over streamable HTTP with OAuth bearer validation`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "petrel version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newDigestCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}

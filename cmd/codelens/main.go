package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/codelens/cmd/codelens/commands"
	"github.com/teranos/codelens/logger"
)

var rootCmd = &cobra.Command{
	Use:   "codelens",
	Short: "codelens - Code navigation for coding agents",
	Long: `codelens - Structural code navigation backed by language analyzers.

codelens spawns the language server owning a file (gopls, typescript-language-server,
pyright, rust-analyzer), keeps it synced with the workspace, and answers structural
questions over its call hierarchy.

Available commands:
  serve      - Serve navigation tools over MCP stdio
  zoom       - Show a file's symbol outline
  impact     - Show everything that calls a symbol
  deps       - Show everything a symbol calls
  references - Find all references to a symbol
  rename     - Rename a symbol across the workspace
  search     - Search top-level declarations by name

Examples:
  codelens serve                            # MCP server for agent integration
  codelens impact internal/auth/token.go Validate
  codelens zoom cmd/server/main.go --level 2
  codelens search Handler`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("log-json")
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit logs as JSON lines on stderr")
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "Workspace root directory")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.ZoomCmd)
	rootCmd.AddCommand(commands.ImpactCmd)
	rootCmd.AddCommand(commands.DepsCmd)
	rootCmd.AddCommand(commands.ReferencesCmd)
	rootCmd.AddCommand(commands.RenameCmd)
	rootCmd.AddCommand(commands.SearchCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
